package remap

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// virtualDocMarker is how the tool renders references to the virtual shim
// document in message bodies ("nul:12:3: note: ...").
const virtualDocMarker = "nul:"

const fixAvailableSuffix = " (fix available)"

// CleanMessage strips tool noise from a diagnostic message: lines that
// reference the virtual shim document and "(fix available)" markers,
// which point at code actions we never forward. The result is
// NFC-normalised and trimmed.
func CleanMessage(msg string) string {
	msg = norm.NFC.String(msg)

	lines := strings.Split(msg, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), virtualDocMarker) {
			continue
		}
		kept = append(kept, line)
	}
	msg = strings.Join(kept, "\n")
	msg = strings.ReplaceAll(msg, fixAvailableSuffix, "")
	return strings.TrimSpace(msg)
}
