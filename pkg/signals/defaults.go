package signals

//nolint: gochecknoglobals
var (
	// DefaultSuspiciousTLDs is used when no deny-list is configured.
	DefaultSuspiciousTLDs = []string{
		"zip", "mov", "tk", "ml", "ga", "gq", "cf", "ru", "top", "xyz", "click",
		"country", "work", "kim", "cam", "rest", "support", "loan", "men", "quest",
	}

	// DefaultBrands is used when no brand list is configured.
	DefaultBrands = []string{
		"google", "paypal", "apple", "microsoft", "amazon", "facebook", "instagram",
		"netflix", "whatsapp", "linkedin", "dropbox", "outlook", "chase",
		"wellsfargo", "bankofamerica", "coinbase", "binance", "docusign", "icloud",
	}

	// extensionTLDs double as common file extensions and get an extra signal.
	extensionTLDs = map[string]struct{}{"zip": {}, "mov": {}}

	executableExtensions = map[string]struct{}{
		".exe": {}, ".msi": {}, ".bat": {}, ".cmd": {}, ".scr": {}, ".pif": {},
		".apk": {}, ".dmg": {}, ".pkg": {}, ".jar": {}, ".vbs": {}, ".ps1": {},
		".hta": {}, ".lnk": {}, ".dll": {},
	}

	archiveExtensions = map[string]struct{}{
		".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {}, ".tgz": {},
		".iso": {}, ".img": {}, ".cab": {}, ".xz": {},
	}

	// payloadKeywords in an archive URL's query suggest a disguised download.
	payloadKeywords = []string{"download", "payload", "attachment", "exec", "install", "file=", "dl"}

	keywordCategories = []struct {
		Name  string
		Words []string
	}{
		{Name: "urgency", Words: []string{"urgent", "immediately", "suspended", "expire", "act-now", "final-notice"}},
		{Name: "credential", Words: []string{"login", "signin", "sign-in", "verify", "password", "credential", "account"}},
		{Name: "financial", Words: []string{"bank", "payment", "invoice", "billing", "wallet", "refund", "giftcard"}},
		{Name: "threat", Words: []string{"locked", "unauthorized", "security-alert", "fraud", "violation", "compromised"}},
		{Name: "download", Words: []string{"download", "install", "free-", "crack", "keygen"}},
	}

	// lookalikes maps characters that render like Latin letters to the letter they imitate.
	lookalikes = map[rune]rune{
		// Cyrillic
		'а': 'a', 'е': 'e', 'о': 'o', 'р': 'p', 'с': 'c', 'у': 'y', 'х': 'x',
		'і': 'i', 'ј': 'j', 'ѕ': 's', 'ԁ': 'd', 'ԛ': 'q', 'ԝ': 'w', 'ӏ': 'l',
		'һ': 'h', 'к': 'k', 'т': 't', 'м': 'm',
		// Armenian
		'ո': 'n', 'ս': 'u', 'օ': 'o',
		// Greek
		'α': 'a', 'ο': 'o', 'ν': 'v', 'ρ': 'p', 'ε': 'e', 'ι': 'i', 'κ': 'k', 'τ': 't',
		// Latin extended
		'ı': 'i', 'ɡ': 'g', 'ɑ': 'a', 'ł': 'l', 'ß': 'b',
	}
)
