// Package vpath classifies an absolute virtual-filesystem path into a
// structured tag plus the identifiers embedded in it. It never touches
// state — whether an extracted id actually names a live model, session,
// or index is the owning handler's job, not the parser's.
package vpath

import "strings"

// Tag identifies which shape of path was parsed.
type Tag int

const (
	// Root is "/".
	Root Tag = iota
	// ModelsRoot is "/models".
	ModelsRoot
	// ModelFile is "/models/<name>".
	ModelFile
	// ConfigRoot is "/config".
	ConfigRoot
	// ConfigModelDir is "/config/<name>".
	ConfigModelDir
	// ConfigSettings is "/config/<name>/settings.toml".
	ConfigSettings
	// ConvRoot is "/conversations".
	ConvRoot
	// SessionDir is "/conversations/<id>".
	SessionDir
	// SessionPrompt is "/conversations/<id>/prompt".
	SessionPrompt
	// SessionHistory is "/conversations/<id>/history".
	SessionHistory
	// SessionContext is "/conversations/<id>/context".
	SessionContext
	// SessionConfigDir is "/conversations/<id>/config".
	SessionConfigDir
	// SessionConfigModel is "/conversations/<id>/config/model".
	SessionConfigModel
	// SessionConfigSettings is "/conversations/<id>/config/settings.toml".
	SessionConfigSettings
	// SearchRoot is "/semantic_search".
	SearchRoot
	// IndexDir is "/semantic_search/<ix>".
	IndexDir
	// CorpusDir is "/semantic_search/<ix>/corpus".
	CorpusDir
	// CorpusFile is "/semantic_search/<ix>/corpus/<doc>".
	CorpusFile
	// QueryFile is "/semantic_search/<ix>/query".
	QueryFile
	// Other is any path that doesn't fit the schema above.
	Other
)

// Path is the result of parsing an absolute path: a tag plus whichever
// identifiers the tag carries. Unused fields are the empty string.
type Path struct {
	Tag     Tag
	Name    string // model name, session id, or index name
	Doc     string // corpus document name (CorpusFile only)
	segment []string
}

// Parse splits an absolute path on "/", skipping the leading separator, and
// classifies it. Parse is total: every input resolves to exactly one Path,
// and parsing the same string twice always yields the same result.
func Parse(p string) Path {
	segs := splitPath(p)
	if len(segs) == 0 {
		return Path{Tag: Root, segment: segs}
	}

	switch segs[0] {
	case "models":
		return parseModels(segs)
	case "config":
		return parseConfig(segs)
	case "conversations":
		return parseConversations(segs)
	case "semantic_search":
		return parseSearch(segs)
	default:
		return Path{Tag: Other, segment: segs}
	}
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func parseModels(segs []string) Path {
	switch len(segs) {
	case 1:
		return Path{Tag: ModelsRoot, segment: segs}
	case 2:
		return Path{Tag: ModelFile, Name: segs[1], segment: segs}
	default:
		return Path{Tag: Other, segment: segs}
	}
}

func parseConfig(segs []string) Path {
	switch len(segs) {
	case 1:
		return Path{Tag: ConfigRoot, segment: segs}
	case 2:
		return Path{Tag: ConfigModelDir, Name: segs[1], segment: segs}
	case 3:
		if segs[2] == "settings.toml" {
			return Path{Tag: ConfigSettings, Name: segs[1], segment: segs}
		}
		return Path{Tag: Other, segment: segs}
	default:
		return Path{Tag: Other, segment: segs}
	}
}

func parseConversations(segs []string) Path {
	switch len(segs) {
	case 1:
		return Path{Tag: ConvRoot, segment: segs}
	case 2:
		return Path{Tag: SessionDir, Name: segs[1], segment: segs}
	case 3:
		switch segs[2] {
		case "prompt":
			return Path{Tag: SessionPrompt, Name: segs[1], segment: segs}
		case "history":
			return Path{Tag: SessionHistory, Name: segs[1], segment: segs}
		case "context":
			return Path{Tag: SessionContext, Name: segs[1], segment: segs}
		case "config":
			return Path{Tag: SessionConfigDir, Name: segs[1], segment: segs}
		default:
			return Path{Tag: Other, segment: segs}
		}
	case 4:
		if segs[2] != "config" {
			return Path{Tag: Other, segment: segs}
		}
		switch segs[3] {
		case "model":
			return Path{Tag: SessionConfigModel, Name: segs[1], segment: segs}
		case "settings.toml":
			return Path{Tag: SessionConfigSettings, Name: segs[1], segment: segs}
		default:
			return Path{Tag: Other, segment: segs}
		}
	default:
		return Path{Tag: Other, segment: segs}
	}
}

func parseSearch(segs []string) Path {
	switch len(segs) {
	case 1:
		return Path{Tag: SearchRoot, segment: segs}
	case 2:
		return Path{Tag: IndexDir, Name: segs[1], segment: segs}
	case 3:
		switch segs[2] {
		case "corpus":
			return Path{Tag: CorpusDir, Name: segs[1], segment: segs}
		case "query":
			return Path{Tag: QueryFile, Name: segs[1], segment: segs}
		default:
			return Path{Tag: Other, segment: segs}
		}
	case 4:
		if segs[2] != "corpus" {
			return Path{Tag: Other, segment: segs}
		}
		return Path{Tag: CorpusFile, Name: segs[1], Doc: segs[3], segment: segs}
	default:
		return Path{Tag: Other, segment: segs}
	}
}

// String names a Tag, for use in diagnostics and log lines.
func (t Tag) String() string {
	switch t {
	case Root:
		return "Root"
	case ModelsRoot:
		return "ModelsRoot"
	case ModelFile:
		return "ModelFile"
	case ConfigRoot:
		return "ConfigRoot"
	case ConfigModelDir:
		return "ConfigModelDir"
	case ConfigSettings:
		return "ConfigSettings"
	case ConvRoot:
		return "ConvRoot"
	case SessionDir:
		return "SessionDir"
	case SessionPrompt:
		return "SessionPrompt"
	case SessionHistory:
		return "SessionHistory"
	case SessionContext:
		return "SessionContext"
	case SessionConfigDir:
		return "SessionConfigDir"
	case SessionConfigModel:
		return "SessionConfigModel"
	case SessionConfigSettings:
		return "SessionConfigSettings"
	case SearchRoot:
		return "SearchRoot"
	case IndexDir:
		return "IndexDir"
	case CorpusDir:
		return "CorpusDir"
	case CorpusFile:
		return "CorpusFile"
	case QueryFile:
		return "QueryFile"
	default:
		return "Other"
	}
}
