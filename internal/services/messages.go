package services

import (
	"strings"
	"unicode/utf8"

	"github.com/nimasrn/daily-mass/internal/model"
)

// MaxMessageLength is the provider's limit for a text body.
const MaxMessageLength = 4096

type messageSet struct {
	Welcome       string
	Resumed       string
	OptedOut      string
	NotRegistered string
	NotReady      string
	FetchFailed   string
	TrialStarted  string
	VerifyCode    string

	FirstReading  string
	Psalm         string
	SecondReading string
	Gospel        string
	ReadMore      string
	Reflection    string
}

var messageSets = map[model.Language]messageSet{
	model.LanguageEnglish: {
		Welcome:       "Welcome to Daily Mass! You will receive today's readings and a short reflection every day at your chosen time. Reply READING for the full readings, SUMMARY for the reflection, or STOP to unsubscribe.",
		Resumed:       "Welcome back! Your daily readings will resume at your chosen time.",
		OptedOut:      "You have been unsubscribed. Reply START at any time to resume.",
		NotRegistered: "This number is not registered for Daily Mass. Sign up on our website to get started.",
		NotReady:      "Today's reflection is not ready yet. Please try again in a few minutes.",
		FetchFailed:   "Sorry, we couldn't fetch today's readings right now. Please try again later.",
		TrialStarted:  "Your Daily Mass free trial has started. Enjoy the readings!",
		VerifyCode:    "Your Daily Mass verification code is %s",
		FirstReading:  "First Reading",
		Psalm:         "Responsorial Psalm",
		SecondReading: "Second Reading",
		Gospel:        "Gospel",
		ReadMore:      "Read the full readings",
		Reflection:    "Today's Reflection",
	},
	model.LanguageSpanish: {
		Welcome:       "¡Bienvenido a Misa Diaria! Recibirás las lecturas de hoy y una breve reflexión cada día a la hora elegida. Responde LECTURA para las lecturas completas, RESUMEN para la reflexión o PARAR para darte de baja.",
		Resumed:       "¡Bienvenido de nuevo! Tus lecturas diarias se reanudarán a la hora elegida.",
		OptedOut:      "Te has dado de baja. Responde INICIAR cuando quieras volver.",
		NotRegistered: "Este número no está registrado en Misa Diaria. Regístrate en nuestro sitio web para comenzar.",
		NotReady:      "La reflexión de hoy aún no está lista. Inténtalo de nuevo en unos minutos.",
		FetchFailed:   "Lo sentimos, no pudimos obtener las lecturas de hoy. Inténtalo más tarde.",
		TrialStarted:  "Tu prueba gratuita de Misa Diaria ha comenzado. ¡Disfruta las lecturas!",
		VerifyCode:    "Tu código de verificación de Misa Diaria es %s",
		FirstReading:  "Primera Lectura",
		Psalm:         "Salmo Responsorial",
		SecondReading: "Segunda Lectura",
		Gospel:        "Evangelio",
		ReadMore:      "Lee las lecturas completas",
		Reflection:    "Reflexión de hoy",
	},
	model.LanguageTagalog: {
		Welcome:       "Maligayang pagdating sa Daily Mass! Matatanggap mo ang mga pagbasa at maikling pagninilay araw-araw sa oras na pinili mo. Sumagot ng PAGBASA para sa buong pagbasa, BUOD para sa pagninilay, o TIGIL para huminto.",
		Resumed:       "Maligayang pagbabalik! Magpapatuloy ang iyong pang-araw-araw na pagbasa sa oras na pinili mo.",
		OptedOut:      "Hindi ka na makakatanggap ng mensahe. Sumagot ng SIMULA kahit kailan para magpatuloy.",
		NotRegistered: "Ang numerong ito ay hindi nakarehistro sa Daily Mass. Mag-sign up sa aming website.",
		NotReady:      "Hindi pa handa ang pagninilay ngayong araw. Pakisubukang muli pagkalipas ng ilang minuto.",
		FetchFailed:   "Paumanhin, hindi namin makuha ang mga pagbasa ngayon. Pakisubukang muli mamaya.",
		TrialStarted:  "Nagsimula na ang iyong libreng trial ng Daily Mass.",
		VerifyCode:    "Ang iyong Daily Mass verification code ay %s",
		FirstReading:  "Unang Pagbasa",
		Psalm:         "Salmong Tugunan",
		SecondReading: "Ikalawang Pagbasa",
		Gospel:        "Mabuting Balita",
		ReadMore:      "Basahin ang buong pagbasa",
		Reflection:    "Pagninilay ngayong araw",
	},
}

func messagesFor(language model.Language) messageSet {
	if m, ok := messageSets[language]; ok {
		return m
	}
	return messageSets[model.LanguageEnglish]
}

// truncate caps text at MaxMessageLength runes, ending with an ellipsis.
func truncate(text string) string {
	if utf8.RuneCountInString(text) <= MaxMessageLength {
		return text
	}
	runes := []rune(text)
	return strings.TrimRightFunc(string(runes[:MaxMessageLength-1]), isSpace) + "…"
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}

func formatPassage(label string, p *model.Passage) string {
	if p.Reference == "" {
		return "*" + label + "*\n\n" + p.Text
	}
	return "*" + label + "* (" + p.Reference + ")\n\n" + p.Text
}
