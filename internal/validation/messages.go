package validation

import "fmt"

// GenericMessage is shown for tags without a dedicated message.
const GenericMessage = "Invalid barcode"

var fixedMessages = map[Tag]string{
	TagRequired:         "Barcode is required",
	TagPattern:          "Barcode can only contain letters, numbers, hyphens, and underscores",
	TagWhitespace:       "Barcode cannot contain spaces",
	TagSpecialChars:     "Barcode contains invalid special characters",
	TagToteIDFormat:     "Invalid tote ID format. Expected: prefix-type-number (e.g., demo-tote-1)",
	TagBarcodeNotExists: "This barcode does not exist in the system",
	TagBlacklisted:      "This barcode is not allowed",
	TagDangerous:        "Invalid input detected",
}

// Message returns the fixed message for tag using the default length rules.
func Message(tag Tag) string {
	return Result{rules: DefaultRules()}.messageFor(tag)
}

func (r Result) messageFor(tag Tag) string {
	switch tag {
	case TagMinLength:
		return fmt.Sprintf("Barcode must be at least %d characters (current: %d)", r.rules.MinLength, r.Length)
	case TagMaxLength:
		return fmt.Sprintf("Barcode cannot exceed %d characters (current: %d)", r.rules.MaxLength, r.Length)
	}
	if msg, ok := fixedMessages[tag]; ok {
		return msg
	}
	return GenericMessage
}
