package storage

import (
	"sort"

	"github.com/Masterminds/semver/v3"
)

// latestVersion picks the version served for a versionless identifier.
// The highest semantic version wins; when no candidate parses as semver the
// unversioned entry is preferred, then the lexically greatest name.
func latestVersion(versions []string) (string, bool) {
	if len(versions) == 0 {
		return "", false
	}

	var best *semver.Version
	bestRaw := ""
	for _, v := range versions {
		if v == "" {
			continue
		}
		parsed, err := semver.NewVersion(v)
		if err != nil {
			continue
		}
		if best == nil || parsed.GreaterThan(best) {
			best = parsed
			bestRaw = v
		}
	}
	if best != nil {
		return bestRaw, true
	}

	sorted := append([]string(nil), versions...)
	sort.Strings(sorted)
	if sorted[0] == "" {
		return "", true
	}
	return sorted[len(sorted)-1], true
}

// sortVersions orders versions newest first using the same rules as latestVersion
func sortVersions(versions []string) []string {
	out := append([]string(nil), versions...)
	sort.SliceStable(out, func(i, j int) bool {
		vi, errI := semver.NewVersion(out[i])
		vj, errJ := semver.NewVersion(out[j])
		switch {
		case errI == nil && errJ == nil:
			return vi.GreaterThan(vj)
		case errI == nil:
			return true
		case errJ == nil:
			return false
		default:
			return out[i] > out[j]
		}
	})
	return out
}
