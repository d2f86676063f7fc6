package scraper

import (
	"time"

	"uniadmit-backend/docstore"
	"uniadmit-backend/lib/deadline"
)

const (
	UniversitiesCollection = "universities"
	TasksCollection        = "scrape_tasks"
)

// DeadlineKey is the basic-info key the admission deadline lives
// under. It is source-page-defined like every other basic-info key,
// but this one drives the admission-open derivation.
const DeadlineKey = "Deadline to Apply"

// UniversityRecord is the canonical shape stored for an institution,
// regardless of which source site it was extracted from.
type UniversityRecord struct {
	ID            string
	Name          string
	BasicInfo     map[string]string
	Description   string
	Programs      map[string][]string
	ApplyLink     string
	PhdApplyLink  string
	SourceURL     string
	AdmissionOpen bool
}

// Document renders the record into its persisted form. The scrape
// timestamp is always server-assigned.
func (r UniversityRecord) Document() docstore.Document {
	doc := docstore.Document{
		"name":          r.Name,
		"basic_info":    r.BasicInfo,
		"description":   r.Description,
		"programs":      r.Programs,
		"apply_link":    r.ApplyLink,
		"url":           r.SourceURL,
		"scraped_at":    docstore.ServerTimestamp,
		"admissionOpen": r.AdmissionOpen,
	}
	if r.PhdApplyLink != "" {
		doc["phd_apply_link"] = r.PhdApplyLink
	}
	return doc
}

// RecordFromDocument coerces a stored document back into the canonical
// shape. Fields with unexpected types are dropped rather than failing
// the whole document; extra fields are ignored (they remain in storage
// untouched since updates are partial).
func RecordFromDocument(doc docstore.Document) UniversityRecord {
	rec := UniversityRecord{
		BasicInfo: map[string]string{},
		Programs:  map[string][]string{},
	}
	rec.ID, _ = doc["id"].(string)
	rec.Name, _ = doc["name"].(string)
	rec.Description, _ = doc["description"].(string)
	rec.ApplyLink, _ = doc["apply_link"].(string)
	rec.PhdApplyLink, _ = doc["phd_apply_link"].(string)
	rec.SourceURL, _ = doc["url"].(string)

	if open, ok := doc["admissionOpen"].(bool); ok {
		rec.AdmissionOpen = open
	} else {
		rec.AdmissionOpen = true
	}

	if info, ok := doc["basic_info"].(map[string]any); ok {
		for k, v := range info {
			if s, ok := v.(string); ok {
				rec.BasicInfo[k] = s
			}
		}
	} else if info, ok := doc["basic_info"].(map[string]string); ok {
		for k, v := range info {
			rec.BasicInfo[k] = v
		}
	}

	switch programs := doc["programs"].(type) {
	case map[string]any:
		for category, v := range programs {
			switch items := v.(type) {
			case []any:
				for _, item := range items {
					if s, ok := item.(string); ok {
						rec.Programs[category] = append(rec.Programs[category], s)
					}
				}
			case []string:
				rec.Programs[category] = append(rec.Programs[category], items...)
			}
		}
	case map[string][]string:
		for category, items := range programs {
			rec.Programs[category] = append(rec.Programs[category], items...)
		}
	}

	return rec
}

// Deadline parses the record's stored deadline; false means no
// deadline is known for the record.
func (r UniversityRecord) Deadline() (time.Time, bool) {
	raw, ok := r.BasicInfo[DeadlineKey]
	if !ok {
		return time.Time{}, false
	}
	return deadline.Parse(raw)
}
