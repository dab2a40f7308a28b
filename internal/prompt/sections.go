package prompt

// Section is one named script section of the output-format contract.
// Open and Close are matched byte for byte by the extractor.
type Section struct {
	Name    string
	Library string
	Open    string
	Close   string
}

var (
	// SeleniumSection delimits the primary script.
	SeleniumSection = Section{
		Name:    "PYTHON_SELENIUM_SCRIPT",
		Library: "Selenium",
		Open:    "=== PYTHON_SELENIUM_SCRIPT ===",
		Close:   "=== END_PYTHON_SELENIUM_SCRIPT ===",
	}

	// PlaywrightSection delimits the alternate script.
	PlaywrightSection = Section{
		Name:    "PYTHON_PLAYWRIGHT_SCRIPT",
		Library: "Playwright",
		Open:    "=== PYTHON_PLAYWRIGHT_SCRIPT ===",
		Close:   "=== END_PYTHON_PLAYWRIGHT_SCRIPT ===",
	}
)

// Sections lists the contract sections in output order: primary, then alternate.
func Sections() []Section {
	return []Section{SeleniumSection, PlaywrightSection}
}

// Fence lines around embedded material.
const (
	contextBegin     = "----- BEGIN DOCUMENT CONTEXT -----"
	contextEnd       = "----- END DOCUMENT CONTEXT -----"
	markupBegin      = "----- BEGIN PAGE MARKUP -----"
	markupEnd        = "----- END PAGE MARKUP -----"
	instructionBegin = "----- BEGIN USER INSTRUCTION -----"
	instructionEnd   = "----- END USER INSTRUCTION -----"
)
