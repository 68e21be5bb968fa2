package language

var reminderPrompts = map[string]string{
	"hi": "क्या आप चाहते हैं कि मैं आपके नुस्खे के अनुसार आपकी दवाओं के लिए एक अनुस्मारक सेट करूं? फिर दो दबाएं।",
	"en": "Would you like me to setup a reminder for your medicines as per your prescription? Then press two.",
	"bn": "আপনি কি চান যে আমি আপনার প্রেসক্রিপশন অনুযায়ী আপনার ওষুধের জন্য একটি অনুস্মারক সেট করি? তাহলে দুই চাপুন।",
	"ta": "உங்கள் மருந்துச்சீட்டின் படி உங்கள் மருந்துகளுக்கு நினைவூட்டல் அமைக்க விரும்புகிறீர்களா? பின்னர் இரண்டு அழுத்தவும்।",
	"te": "మీరు మీ ప్రిస్క్రిప్షన్ ప్రకారం మీ మందులకు రిమైండర్ సెటప్ చేయాలనుకుంటున్నారా? అప్పుడు రెండు నొక్కండి।",
	"kn": "ನಿಮ್ಮ ಪ್ರಿಸ್ಕ್ರಿಪ್ಷನ್ ಪ್ರಕಾರ ನಿಮ್ಮ ಔಷಧಿಗಳಿಗೆ ರಿಮೈಂಡರ್ ಸೆಟಪ್ ಮಾಡಲು ನೀವು ಬಯಸುತ್ತೀರಾ? ನಂತರ ಎರಡು ಒತ್ತಿರಿ।",
	"ml": "നിങ്ങളുടെ പ്രിസ്ക്രിപ്ഷൻ അനുസരിച്ച് നിങ്ങളുടെ മരുന്നുകൾക്ക് ഒരു ഓർമ്മപ്പെടുത്തൽ സജ്ജമാക്കാൻ നിങ്ങൾ ആഗ്രഹിക്കുന്നുണ്ടോ? പിന്നെ രണ്ട് അമർത്തുക।",
	"mr": "तुम्हाला तुमच्या प्रिस्क्रिप्शननुसार तुमच्या औषधांसाठी रिमाइंडर सेट करायचा आहे का? मग दोन दाबा।",
	"gu": "શું તમે ઇચ્છો છો કે હું તમારા પ્રિસ્ક્રિપ્શન મુજબ તમારી દવાઓ માટે રિમાઇન્ડર સેટ કરું? પછી બે દબાવો।",
}

var reminderConfirmations = map[string]string{
	"hi": "आपके नुस्खे के अनुसार आपकी दवाओं के लिए अनुस्मारक सेट कर दिया गया है।",
	"en": "Reminder has been setup for your medicines as per your prescription.",
	"bn": "আপনার প্রেসক্রিপশন অনুযায়ী আপনার ওষুধের জন্য অনুস্মারক সেট করা হয়েছে।",
	"ta": "உங்கள் மருந்துச்சீட்டின் படி உங்கள் மருந்துகளுக்கு நினைவூட்டல் அமைக்கப்பட்டது।",
	"te": "మీ ప్రిస్క్రిప్షన్ ప్రకారం మీ మందులకు రిమైండర్ సెట్ చేయబడింది।",
	"kn": "ನಿಮ್ಮ ಪ್ರಿಸ್ಕ್ರಿಪ್ಷನ್ ಪ್ರಕಾರ ನಿಮ್ಮ ಔಷಧಿಗಳಿಗೆ ರಿಮೈಂಡರ್ ಸೆಟ್ ಮಾಡಲಾಗಿದೆ।",
	"ml": "നിങ്ങളുടെ പ്രിസ്ക്രിപ്ഷൻ അനുസരിച്ച് നിങ്ങളുടെ മരുന്നുകൾക്ക് ഓർമ്മപ്പെടുത്തൽ സജ്ജമാക്കി।",
	"mr": "तुमच्या प्रिस्क्रिप्शननुसार तुमच्या औषधांसाठी रिमाइंडर सेट केले आहे।",
	"gu": "તમારા પ્રિસ્ક્રિપ્શન મુજબ તમારી દવાઓ માટે રિમાઇન્ડર સેટ કરવામાં આવ્યું છે।",
}

// NotInPrescriptionWarning is the canonical English refusal for a medicine
// that does not match the stored prescription.
const NotInPrescriptionWarning = "This medicine is not in your prescription. Please do not take this medicine."

var notInPrescription = map[string]string{
	"hi": "यह दवा आपके नुस्खे में नहीं है। कृपया यह दवा न लें।",
	"en": NotInPrescriptionWarning,
	"bn": "এই ওষুধটি আপনার প্রেসক্রিপশনে নেই। অনুগ্রহ করে এই ওষুধটি খাবেন না।",
	"ta": "இந்த மருந்து உங்கள் மருந்துச்சீட்டில் இல்லை. தயவுசெய்து இந்த மருந்தை எடுத்துக்கொள்ள வேண்டாம்.",
	"te": "ఈ మందు మీ ప్రిస్క్రిప్షన్‌లో లేదు. దయచేసి ఈ మందును తీసుకోకండి.",
	"kn": "ಈ ಔಷಧಿ ನಿಮ್ಮ ಪ್ರಿಸ್ಕ್ರಿಪ್ಷನ್‌ನಲ್ಲಿ ಇಲ್ಲ. ದಯವಿಟ್ಟು ಈ ಔಷಧಿಯನ್ನು ತೆಗೆದುಕೊಳ್ಳಬೇಡಿ.",
	"ml": "ഈ മരുന്ന് നിങ്ങളുടെ പ്രിസ്ക്രിപ്ഷനിൽ ഇല്ല. ദയവായി ഈ മരുന്ന് കഴിക്കരുത്.",
	"mr": "हे औषध तुमच्या प्रिस्क्रिप्शनमध्ये नाही. कृपया हे औषध घेऊ नका.",
	"gu": "આ દવા તમારા પ્રિસ્ક્રિપ્શનમાં નથી. કૃપા કરીને આ દવા લેશો નહીં.",
}

// Sent while no language has been chosen yet.
var invalidOptions = map[string]string{
	"hi": "अमान्य विकल्प। कृपया 1 से 9 के बीच कोई संख्या भेजें।",
	"en": "Invalid option. Please reply with a valid number.",
	"bn": "অবৈধ বিকল্প। অনুগ্রহ করে 1 থেকে 9 এর মধ্যে একটি সংখ্যা পাঠান।",
	"ta": "தவறான தேர்வு. தயவுசெய்து 1 முதல் 9 வரை ஒரு எண்ணை அனுப்பவும்.",
	"te": "చెల్లని ఎంపిక. దయచేసి 1 నుండి 9 మధ్య ఒక సంఖ్యను పంపండి.",
	"kn": "ಅಮಾನ್ಯ ಆಯ್ಕೆ. ದಯವಿಟ್ಟು 1 ರಿಂದ 9 ರ ನಡುವಿನ ಸಂಖ್ಯೆಯನ್ನು ಕಳುಹಿಸಿ.",
	"ml": "അസാധുവായ ഓപ്ഷൻ. ദയവായി 1 മുതൽ 9 വരെയുള്ള ഒരു നമ്പർ അയയ്ക്കുക.",
	"mr": "अवैध पर्याय. कृपया 1 ते 9 मधील एक क्रमांक पाठवा.",
	"gu": "અમાન્ય વિકલ્પ. કૃપા કરીને 1 થી 9 વચ્ચેનો નંબર મોકલો.",
}

// InvalidOption rejects a menu reply that names no language.
func InvalidOption(code string) string {
	return lookup(invalidOptions, code)
}

// ReminderPrompt asks whether a medicine reminder should be set up.
func ReminderPrompt(code string) string {
	return lookup(reminderPrompts, code)
}

// ReminderConfirmation acknowledges a reminder request.
func ReminderConfirmation(code string) string {
	return lookup(reminderConfirmations, code)
}

// LocalizedNotInPrescriptionWarning is the pre-translated refusal used when
// live translation is unavailable.
func LocalizedNotInPrescriptionWarning(code string) string {
	return lookup(notInPrescription, code)
}

func lookup(table map[string]string, code string) string {
	if v, ok := table[BaseCode(code)]; ok {
		return v
	}
	return table["en"]
}
