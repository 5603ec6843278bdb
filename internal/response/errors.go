package response

// ErrCode identifies an API error. Clients switch on it, not on the message.
type ErrCode string

const (
	// authentication
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// authorization
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"

	// validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// resources
	ErrNotFound ErrCode = "NOT_FOUND"

	// exam-specific
	ErrExamNotFound     ErrCode = "EXAM_NOT_FOUND"
	ErrExamNotAvailable ErrCode = "EXAM_NOT_AVAILABLE"
	ErrExamIncomplete   ErrCode = "EXAM_INCOMPLETE"

	// session-specific
	ErrSessionNotFound   ErrCode = "SESSION_NOT_FOUND"
	ErrNotInProgress     ErrCode = "SESSION_NOT_IN_PROGRESS"
	ErrSessionClosed     ErrCode = "SESSION_CLOSED"
	ErrUnknownQuestion   ErrCode = "UNKNOWN_QUESTION"
	ErrAnswerShape       ErrCode = "ANSWER_SHAPE_MISMATCH"
	ErrInvalidNavigation ErrCode = "INVALID_NAVIGATION"
	ErrConfirmRequired   ErrCode = "SUBMIT_CONFIRMATION_REQUIRED"

	// rate limiting
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// server
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

var messages = map[ErrCode]string{
	ErrInvalidCredentials: "Email atau kata sandi salah.",
	ErrSessionInvalidated: "Sesi Anda telah berakhir. Silakan login kembali.",
	ErrTokenRequired:      "Token autentikasi diperlukan.",
	ErrTokenInvalid:       "Token autentikasi tidak valid.",
	ErrForbidden:          "Anda tidak memiliki izin untuk mengakses sumber daya ini.",
	ErrStudentAccessOnly:  "Sumber daya ini terbatas untuk siswa.",
	ErrValidation:         "Validasi gagal. Silakan periksa masukan Anda.",
	ErrInvalidID:          "Format ID tidak valid.",
	ErrInvalidPayload:     "Payload permintaan tidak valid.",
	ErrNotFound:           "Sumber daya tidak ditemukan.",
	ErrExamNotFound:       "Ujian tidak ditemukan.",
	ErrExamNotAvailable:   "Ujian ini saat ini tidak tersedia.",
	ErrExamIncomplete:     "Ujian ini belum lengkap dan tidak dapat dimulai.",
	ErrSessionNotFound:    "Sesi ujian tidak ditemukan.",
	ErrNotInProgress:      "Sesi ujian sudah tidak berlangsung.",
	ErrSessionClosed:      "Sesi ujian telah ditutup.",
	ErrUnknownQuestion:    "Soal tidak termasuk dalam ujian ini.",
	ErrAnswerShape:        "Bentuk jawaban tidak sesuai dengan jenis soal.",
	ErrInvalidNavigation:  "Nomor soal di luar jangkauan.",
	ErrConfirmRequired:    "Konfirmasi diperlukan sebelum mengumpulkan ujian.",
	ErrRateLimitExceeded:  "Terlalu banyak permintaan. Silakan coba lagi nanti.",
	ErrInternal:           "Terjadi kesalahan server internal.",
}

// GetMessage returns the user-facing (Indonesian) message for code.
func GetMessage(code ErrCode) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Terjadi kesalahan yang tidak terduga."
}
