package validate

// remediation maps collector validation codes to a suggestion a developer can
// act on without reading the collector docs.
var remediation = map[string]string{
	"VALUE_INVALID":                "A field value has the wrong type or format; check the field_path against the payload you sent.",
	"VALUE_REQUIRED":               "A required field value is empty; populate it before sending.",
	"VALUE_OUT_OF_BOUNDS":          "A field value exceeds the collector's limits; shorten or reduce it.",
	"NAME_INVALID":                 "The event or parameter name contains invalid characters; use letters, digits and underscores only.",
	"NAME_RESERVED":                "The name collides with a reserved collector name; rename the event or parameter.",
	"NAME_DUPLICATED":              "The same name appears more than once in the payload; deduplicate before sending.",
	"EXCEEDED_MAX_ENTITY_QUANTITY": "The payload carries more entities than the collector accepts; split it into smaller sends.",
}

// GenericRemediation is the fallback suggestion for unrecognized codes and
// structural errors.
const GenericRemediation = "Consult the collector's documentation for details on this validation message."

// Remediation returns the suggestion for a classification code, falling back
// to the generic message.
func Remediation(code string) string {
	if s, ok := remediation[code]; ok {
		return s
	}
	return GenericRemediation
}
