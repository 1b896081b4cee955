package service

import (
	"strconv"
	"strings"

	"github.com/anthanhphan/go-model-share/internal/api/domain"
	"github.com/anthanhphan/go-model-share/internal/api/port"
)

// CandidateBuilder derives retrieval URLs from the naming conventions the
// media host has used over time.
type CandidateBuilder struct {
	bases  []string
	folder string
}

var _ port.CandidateGenerator = (*CandidateBuilder)(nil)

// NewCandidateBuilder takes delivery bases in preference order (current convention first).
func NewCandidateBuilder(bases []string, folder string) *CandidateBuilder {
	cleaned := make([]string, 0, len(bases))
	for _, b := range bases {
		b = strings.TrimRight(strings.TrimSpace(b), "/")
		if b != "" {
			cleaned = append(cleaned, b)
		}
	}
	return &CandidateBuilder{bases: cleaned, folder: strings.Trim(folder, "/")}
}

// Generate expands base × name × version × extension, outermost first, dropping
// duplicates. An unparseable id yields no candidates.
func (b *CandidateBuilder) Generate(id string) []string {
	parsed, err := domain.ParseID(id)
	if err != nil {
		return []string{}
	}

	ts := strconv.FormatInt(parsed.Timestamp, 10)
	names := []string{parsed.Suffix}
	if parsed.Suffix != domain.DefaultObjectSuffix {
		names = append(names, domain.DefaultObjectSuffix)
	}
	versions := []string{"", "v" + ts + "/"}

	seen := make(map[string]struct{})
	out := make([]string, 0, len(b.bases)*len(names)*len(versions)*len(domain.SupportedExtensions))
	for _, base := range b.bases {
		for _, name := range names {
			for _, version := range versions {
				for _, ext := range domain.SupportedExtensions {
					candidate := b.candidate(base, version, domain.ObjectName(parsed.Timestamp, name)+ext)
					if _, dup := seen[candidate]; dup {
						continue
					}
					seen[candidate] = struct{}{}
					out = append(out, candidate)
				}
			}
		}
	}
	return out
}

func (b *CandidateBuilder) candidate(base, version, file string) string {
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteByte('/')
	sb.WriteString(version)
	if b.folder != "" {
		sb.WriteString(b.folder)
		sb.WriteByte('/')
	}
	sb.WriteString(file)
	return sb.String()
}
