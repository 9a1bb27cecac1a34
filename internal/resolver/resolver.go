// Package resolver implements the window-selector matching and tie-break
// rules used to turn a WindowSelector into a single WindowRecord.
package resolver

import (
	"regexp"
	"strings"

	"github.com/bryanchriswhite/wincap/internal/wincap"
)

// Resolve matches sel against records and returns the single best match.
//
// Matching: a title delimited by "/.../" is a case-insensitive regular
// expression; otherwise it is a case-insensitive substring test. Class and
// Exe match case-insensitively. All supplied fields must match.
//
// Tie-breaks, in order: focused windows first, then the window whose title
// is the longer superstring of the pattern, then largest visible area,
// then enumeration order.
func Resolve(sel wincap.WindowSelector, records []wincap.WindowRecord) (wincap.WindowRecord, error) {
	if sel.IsEmpty() {
		return wincap.WindowRecord{}, wincap.NewError(wincap.ErrInvalidArgument, "", "window selector must set at least one of title, class, or exe")
	}

	titleRe, useRegex, err := compileTitlePattern(sel.Title)
	if err != nil {
		return wincap.WindowRecord{}, wincap.WrapError(wincap.ErrInvalidArgument, "", err, "invalid title pattern %q", sel.Title)
	}

	var matches []int
	for i, rec := range records {
		if !matchTitle(sel.Title, titleRe, useRegex, rec.Title) {
			continue
		}
		if sel.Class != "" && !strings.EqualFold(sel.Class, rec.Class) {
			continue
		}
		if sel.Exe != "" && !strings.EqualFold(baseExe(sel.Exe), baseExe(rec.Exe)) {
			continue
		}
		matches = append(matches, i)
	}

	if len(matches) == 0 {
		return wincap.WindowRecord{}, wincap.NewError(wincap.ErrNotFound, "", "no window matched selector %+v", sel)
	}

	best := matches[0]
	for _, i := range matches[1:] {
		if better(records[i], records[best], sel.Title) {
			best = i
		}
	}
	return records[best], nil
}

// compileTitlePattern detects a "/.../" delimited title and compiles it as
// a case-insensitive regular expression.
func compileTitlePattern(title string) (*regexp.Regexp, bool, error) {
	if len(title) >= 2 && strings.HasPrefix(title, "/") && strings.HasSuffix(title, "/") {
		inner := title[1 : len(title)-1]
		re, err := regexp.Compile("(?i)" + inner)
		if err != nil {
			return nil, false, err
		}
		return re, true, nil
	}
	return nil, false, nil
}

func matchTitle(pattern string, re *regexp.Regexp, useRegex bool, title string) bool {
	if pattern == "" {
		return true
	}
	if useRegex {
		return re.MatchString(title)
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(pattern))
}

// baseExe strips any leading path components from an executable name so
// "/usr/bin/firefox" matches a selector of "firefox".
func baseExe(exe string) string {
	if i := strings.LastIndexAny(exe, `/\`); i >= 0 {
		return exe[i+1:]
	}
	return exe
}

// better reports whether candidate should replace current as the best match.
func better(candidate, current wincap.WindowRecord, titlePattern string) bool {
	if candidate.Focused != current.Focused {
		return candidate.Focused
	}

	candSuperstring := strings.Contains(strings.ToLower(candidate.Title), strings.ToLower(titlePattern))
	currSuperstring := strings.Contains(strings.ToLower(current.Title), strings.ToLower(titlePattern))
	if candSuperstring != currSuperstring {
		return candSuperstring && len(candidate.Title) > len(current.Title)
	}
	if candSuperstring && currSuperstring && len(candidate.Title) != len(current.Title) {
		return len(candidate.Title) > len(current.Title)
	}

	if candidate.Rect.Area() != current.Rect.Area() {
		return candidate.Rect.Area() > current.Rect.Area()
	}

	return false
}
