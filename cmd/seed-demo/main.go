package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/database"
	"github.com/stemsi/exstem-cbt/internal/logger"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

var names = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	"Hendra Gunawan", "Ika Sari", "Lukman Hakim", "Maya Septiana", "Nanda Pratama",
	"Oki Setiana", "Putri Dian", "Rafi Ahmad", "Toni Setiawan", "Wahyu Hidayat",
}

func main() {
	var (
		className = flag.String("class", "XII TKJ 2", "Class the students and the demo exam belong to")
		count     = flag.Int("students", 20, "Number of students to create")
		password  = flag.String("password", "stemsijaya", "Password shared by the seeded students")
	)
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	examRepo := repository.NewExamRepository(pool)

	// One hash for everyone; bcrypt per student would dominate the run time.
	hash, err := bcrypt.GenerateFromPassword([]byte(*password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	fmt.Printf("=== Seeding %d Students (%s) ===\n", *count, *className)

	created := 0
	for i := 0; i < *count; i++ {
		student := &model.User{
			Email:        fmt.Sprintf("user%d@exstem.local", i+1),
			Name:         studentName(i),
			Role:         model.RoleStudent,
			ClassName:    *className,
			PasswordHash: string(hash),
		}
		if err := userRepo.Create(ctx, student); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				continue
			}
			log.Fatal().Err(err).Str("email", student.Email).Msg("Failed to create student")
		}
		created++
	}
	fmt.Printf("Created %d new students (existing emails skipped)\n", created)

	exam := demoExam(*className)
	if err := exam.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Demo exam is invalid")
	}
	if err := examRepo.CreateExam(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to create demo exam")
	}

	fmt.Printf("\nSeed completed! Exam %q (%s) is ACTIVE with %d questions.\n",
		exam.Title, exam.ID, len(exam.Questions))
}

func studentName(i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("Siswa %d", i+1)
}

// demoExam has one question of every type.
func demoExam(className string) *model.Exam {
	return &model.Exam{
		Title:           "Ujian Demo " + strings.TrimSpace(className),
		Subject:         "Science",
		AssignedClass:   className,
		DurationMinutes: 30,
		Status:          model.ExamStatusActive,
		Questions: []model.Question{
			{
				ID: "q1", OrderNum: 1, Points: 2,
				Type:          model.QuestionTypeMultipleChoice,
				Text:          "Planet terbesar di tata surya adalah ...",
				Options:       []string{"Mars", "Jupiter", "Venus", "Merkurius"},
				CorrectAnswer: model.SingleKey("Jupiter"),
			},
			{
				ID: "q2", OrderNum: 2, Points: 3,
				Type:          model.QuestionTypeMultiSelect,
				Text:          "Pilih semua bilangan prima.",
				Options:       []string{"2", "4", "11", "15", "19"},
				CorrectAnswer: model.SetKey("2", "11", "19"),
			},
			{
				ID: "q3", OrderNum: 3, Points: 2,
				Type:          model.QuestionTypeTrueFalse,
				Text:          "Air mendidih pada 50°C di permukaan laut.",
				CorrectAnswer: model.SingleKey("false"),
			},
			{
				ID: "q4", OrderNum: 4, Points: 2,
				Type:          model.QuestionTypeFillInTheBlank,
				Text:          "Proses tumbuhan membuat makanan dengan bantuan cahaya disebut ...",
				CorrectAnswer: model.SingleKey("Fotosintesis"),
			},
			{
				ID: "q5", OrderNum: 5, Points: 4,
				Type: model.QuestionTypeMatching,
				Text: "Pasangkan organ dengan fungsinya.",
				MatchingPairs: []model.MatchingPair{
					{Left: "Jantung", Right: "Memompa darah"},
					{Left: "Paru-paru", Right: "Pertukaran gas"},
				},
				CorrectAnswer: model.SingleKey("Memompa darah,Pertukaran gas"),
			},
		},
	}
}
