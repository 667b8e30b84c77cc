package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// Shim accumulation & translation
	ShimInfo              Code = 1000
	ShimUnreprintable     Code = 1001
	ShimOrderingViolation Code = 1002
	ShimNestedSection     Code = 1003
	ShimEmptySection      Code = 1004

	// External tool client
	ToolInfo             Code = 2000
	ToolSpawnFailed      Code = 2001
	ToolCrashed          Code = 2002
	ToolTimeout          Code = 2003
	ToolMalformedMessage Code = 2004
	ToolShutdownFailed   Code = 2005

	// Remapped tool findings (message carries the tool's own text)
	ToolDiagnostic Code = 2100

	// Boundary code generation
	BndInfo                 Code = 3000
	BndNameResolution       Code = 3001
	BndUnsupportedSignature Code = 3002
	BndRegistrationConflict Code = 3003

	// Ошибки I/O
	IOLoadFileError    Code = 4001
	IODumpDecodeError  Code = 4002
	IODumpVersionError Code = 4003

	// Ошибки манифеста проекта
	ProjInfo          Code = 5000
	ProjManifestError Code = 5001
	ProjUnknownKey    Code = 5002
	ProjBadTimeout    Code = 5003
	ProjBadToolPath   Code = 5004

	// Observability
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var ( // todo расширить описания и использовать как notes
	codeDescription = map[Code]string{
		UnknownCode:             "Unknown error",
		ShimInfo:                "Shim information",
		ShimUnreprintable:       "Node cannot be reprinted verbatim",
		ShimOrderingViolation:   "Shim offsets must not decrease",
		ShimNestedSection:       "Sections cannot be nested",
		ShimEmptySection:        "Section produced no shim code",
		ToolInfo:                "Tool information",
		ToolSpawnFailed:         "Failed to start external tool",
		ToolCrashed:             "External tool exited unexpectedly",
		ToolTimeout:             "External tool did not answer in time",
		ToolMalformedMessage:    "Malformed message from external tool",
		ToolShutdownFailed:      "External tool did not shut down cleanly",
		ToolDiagnostic:          "Diagnostic reported by external tool",
		BndInfo:                 "Boundary information",
		BndNameResolution:       "Cannot resolve name for boundary code",
		BndUnsupportedSignature: "Signature has no boundary representation",
		BndRegistrationConflict: "Conflicting external class registration",
		IOLoadFileError:         "I/O load file error",
		IODumpDecodeError:       "Malformed elaboration dump",
		IODumpVersionError:      "Unsupported elaboration dump version",
		ProjInfo:                "Project information",
		ProjManifestError:       "Invalid project manifest",
		ProjUnknownKey:          "Unknown manifest key",
		ProjBadTimeout:          "Invalid diagnostics timeout",
		ProjBadToolPath:         "Tool executable not found",
		ObsInfo:                 "Observability information",
		ObsTimings:              "Pipeline timings",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("SHM%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("TOL%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("BND%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("PRJ%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
