package conversation

import (
	"fmt"

	"github.com/swaasthya/saathi/internal/language"
)

const (
	replyReset           = "🔄 Session reset! Please send a new prescription photo to start again."
	replyMenuAudio       = "🎙️ Please listen and reply with a number (1–9) to select your language."
	replyMedicineTip     = "📸 After choosing language, please send a clear photo of each medicine label one by one to get spoken instructions."
	replyVoiceTip        = "🎤 You can now send voice notes to ask questions about the prescription."
	replyWelcome         = "👋 Please send a clear photo of your prescription to get started."
	replyChooseLanguage  = "🔢 Please choose a language first by replying with a number (1–9)."
	replyAlreadyCaptured = "📄 Your prescription is already saved. Send a photo of a medicine to check it, or type \"done\" to start over."
	replyVoiceNotReady   = "🎤 Voice questions are available once a prescription is saved and a language is chosen."
	replyNoImageInfo     = "No information available from the image."
	replyNoSummary       = "No summary available"
	replyFailure         = "⚠️ Something went wrong, please try again."
)

// invalidOptionReply is shown before any language is chosen, so it carries
// English and the language the menu is spoken in.
func invalidOptionReply() string {
	menu := language.MenuSpeechLanguage()
	return "❌ " + language.InvalidOption("en") + "\n" + language.InvalidOption(menu.Code)
}

func linkReply(dashboardURL string) string {
	return fmt.Sprintf("🔗 Here's the link to Swaasthya-Saathi:\n\n%s\n\nAccess your health dashboard and manage your prescriptions!", dashboardURL)
}

func summaryAudioCaption(l language.Language) string {
	return fmt.Sprintf("🎧 Here's your prescription summary with reminder prompt in %s:", l.Label)
}

func summaryTextReply(l language.Language, text string) string {
	return fmt.Sprintf("📝 Here's your prescription summary in %s:\n\n%s", l.Label, text)
}

func transcriptionEcho(transcript string) string {
	return fmt.Sprintf("🗨️ Transcribed: %s\n\n💡 Processing your question...", transcript)
}

func answerReply(l language.Language, answer string, withAudio bool) string {
	if withAudio {
		return fmt.Sprintf("🤖 Here's the answer to your question in %s:", l.Label)
	}
	return fmt.Sprintf("🤖 Here's the answer to your question in %s:\n\n%s", l.Label, answer)
}

func medicineReply(l language.Language, info string, withAudio bool) string {
	if withAudio {
		return fmt.Sprintf("📄 Information from your image in %s:", l.Label)
	}
	return fmt.Sprintf("📄 Information from your image:\n\n%s", info)
}

func confirmationReply(text string) string {
	return "✅ " + text
}
