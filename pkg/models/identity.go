package models

import "strconv"

// Identity describes the caller on whose behalf a query runs.
// It is supplied per request by the authentication layer and is never
// persisted by the engine.
type Identity struct {
	Role        string `json:"role"`
	SubjectID   string `json:"subject_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// SubjectLiteral returns the subject id formatted as a SQL literal:
// numeric values stay unquoted, everything else is single-quoted with
// embedded quotes doubled.
func (i Identity) SubjectLiteral() string {
	if _, err := strconv.ParseInt(i.SubjectID, 10, 64); err == nil {
		return i.SubjectID
	}
	escaped := ""
	for _, r := range i.SubjectID {
		if r == '\'' {
			escaped += "''"
		} else {
			escaped += string(r)
		}
	}
	return "'" + escaped + "'"
}
