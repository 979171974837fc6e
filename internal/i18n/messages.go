// Package i18n holds the user-facing message catalog. Keys are the English
// texts; the Indonesian catalog is keyed by them.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	MsgImageFailed       = "Image generation failed, please try again later"
	MsgImageTimeout      = "Timeout: Image generation took too long. Please try again."
	MsgSpeechFailed      = "Speech generation failed. Please try again."
	MsgSpeechTimeout     = "Speech generation timed out. Please try again."
	MsgNoTask            = "No task found for this generation"
	MsgNoImageURL        = "No image URL found in response"
	MsgNoAudioURL        = "No audio URL found in response"
	MsgSubmitFailed      = "Failed to submit task: %d"
	MsgSubmitUnreachable = "Failed to submit task"
	MsgPollFailed        = "Failed to fetch task result"
	MsgServiceConfig     = "Service configuration error"
	MsgInsufficient      = "Insufficient balance. You need $%s but only have $%s. Please top up your account."
	MsgPromptRequired    = "Prompt is required"
	MsgSizeRequired      = "Size is required"
	MsgInvalidBody       = "Invalid request body"
	MsgUnauthorized      = "Unauthorized"
	MsgForbidden         = "Forbidden"
	MsgNotFound          = "Not found"
	MsgTooManyRequests   = "Too many requests"
	MsgRecordFailed      = "Failed to create generation record"
	MsgInternal          = "Internal server error"
	MsgGenerationPending = "Generation is still in progress"
)

var indonesian = map[string]string{
	MsgImageFailed:       "Pembuatan gambar gagal, silakan coba lagi nanti",
	MsgImageTimeout:      "Batas waktu habis: pembuatan gambar terlalu lama. Silakan coba lagi.",
	MsgSpeechFailed:      "Pembuatan suara gagal. Silakan coba lagi.",
	MsgSpeechTimeout:     "Pembuatan suara melebihi batas waktu. Silakan coba lagi.",
	MsgNoTask:            "Tidak ada tugas yang ditemukan untuk pembuatan ini",
	MsgNoImageURL:        "URL gambar tidak ditemukan dalam respons",
	MsgNoAudioURL:        "URL audio tidak ditemukan dalam respons",
	MsgSubmitFailed:      "Gagal mengirim tugas: %d",
	MsgSubmitUnreachable: "Gagal mengirim tugas",
	MsgPollFailed:        "Gagal mengambil hasil tugas",
	MsgServiceConfig:     "Kesalahan konfigurasi layanan",
	MsgInsufficient:      "Saldo tidak mencukupi. Anda membutuhkan $%s tetapi hanya memiliki $%s. Silakan isi ulang akun Anda.",
	MsgPromptRequired:    "Prompt wajib diisi",
	MsgSizeRequired:      "Ukuran wajib diisi",
	MsgInvalidBody:       "Isi permintaan tidak valid",
	MsgUnauthorized:      "Tidak diizinkan",
	MsgForbidden:         "Akses ditolak",
	MsgNotFound:          "Tidak ditemukan",
	MsgTooManyRequests:   "Terlalu banyak permintaan",
	MsgRecordFailed:      "Gagal membuat catatan pembuatan",
	MsgInternal:          "Terjadi kesalahan pada server",
	MsgGenerationPending: "Pembuatan masih diproses",
}

// Supported lists the catalog languages; the first entry is the fallback.
var Supported = []language.Tag{language.English, language.Indonesian}

var (
	matcher = language.NewMatcher(Supported)
	cat     = buildCatalog()
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range indonesian {
		if err := b.SetString(language.Indonesian, key, msg); err != nil {
			panic("i18n: " + err.Error())
		}
	}
	return b
}

// Match picks the best supported locale for an Accept-Language style list.
// Unknown or empty input yields "en".
func Match(accept string) string {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return "en"
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return "en"
	}
	return Locale(Supported[idx])
}

// Locale renders a supported tag as the short code stored on requests.
func Locale(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

func tag(locale string) language.Tag {
	if strings.EqualFold(strings.TrimSpace(locale), "id") {
		return language.Indonesian
	}
	return language.English
}

// Printer returns a printer bound to the catalog for locale.
func Printer(locale string) *message.Printer {
	return message.NewPrinter(tag(locale), message.Catalog(cat))
}

// T formats key for locale. Keys missing from the catalog are formatted as given.
func T(locale, key string, args ...any) string {
	return Printer(locale).Sprintf(key, args...)
}

// Translate localizes a stored message verbatim. Text outside the catalog is
// returned unchanged.
func Translate(locale, text string) string {
	if tag(locale) == language.English {
		return text
	}
	if msg, ok := indonesian[text]; ok {
		return msg
	}
	return text
}
