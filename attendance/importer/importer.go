package importer

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"accessadmin.com/accessadmin/attendance/model"
	"accessadmin.com/accessadmin/attendance/registry"
	"accessadmin.com/accessadmin/config"
	"accessadmin.com/accessadmin/utils"
	"github.com/sirupsen/logrus"
)

// Punch is one row of a gate export:
//
//	id,national_id,timestamp,direction,terminal
//
// Direction may be blank; it is then inferred per person and day.
type Punch struct {
	Line       int
	ID         string
	NationalID string
	Timestamp  time.Time
	Direction  model.Direction
	Terminal   string
}

// ParsePunchCSV reads a gate export. Timestamps without an offset are read
// in loc.
func ParsePunchCSV(r io.Reader, loc *time.Location) ([]Punch, error) {
	rows, err := utils.ParseCSV(r)
	if err != nil {
		return nil, err
	}

	var punches []Punch
	for i, row := range rows {
		line := i + 1
		if i == 0 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "id") {
			continue
		}
		if len(row) < 3 {
			return nil, fmt.Errorf("row %d: expected at least 3 columns, got %d", line, len(row))
		}

		nationalID := strings.TrimSpace(row[1])
		if nationalID == "" {
			return nil, fmt.Errorf("row %d: missing national id", line)
		}

		timestamp, err := utils.ParseTimeIn(strings.TrimSpace(row[2]), loc)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid timestamp: %w", line, err)
		}

		punch := Punch{
			Line:       line,
			ID:         strings.TrimSpace(row[0]),
			NationalID: nationalID,
			Timestamp:  timestamp,
		}
		if len(row) > 3 {
			direction, err := parseDirection(row[3])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", line, err)
			}
			punch.Direction = direction
		}
		if len(row) > 4 {
			punch.Terminal = strings.TrimSpace(row[4])
		}
		punches = append(punches, punch)
	}

	return punches, nil
}

func parseDirection(s string) (model.Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "IN", "I", "0":
		return model.DirectionIn, nil
	case "OUT", "O", "1":
		return model.DirectionOut, nil
	default:
		return "", fmt.Errorf("invalid direction %q", s)
	}
}

// InferDirections fills blank directions by alternating IN and OUT over each
// person's punches of a day, starting with IN.
func InferDirections(punches []Punch, loc *time.Location) []Punch {
	out := make([]Punch, len(punches))
	copy(out, punches)

	indexes := make([]int, len(out))
	for i := range indexes {
		indexes[i] = i
	}
	groups := utils.GroupBy(indexes, func(i int) string {
		return out[i].NationalID + "|" + out[i].Timestamp.In(loc).Format(time.DateOnly)
	})

	for _, group := range groups {
		sort.SliceStable(group, func(a, b int) bool {
			return out[group[a]].Timestamp.Before(out[group[b]].Timestamp)
		})
		for n, i := range group {
			if out[i].Direction != "" {
				continue
			}
			if n%2 == 0 {
				out[i].Direction = model.DirectionIn
			} else {
				out[i].Direction = model.DirectionOut
			}
		}
	}
	return out
}

type Registry interface {
	FindIdentityByNationalID(ctx context.Context, nationalID string) (*model.Identity, error)
	HasLocalEvent(ctx context.Context, punch registry.LocalPunch) (bool, error)
	RecordLocalEvent(ctx context.Context, punch registry.LocalPunch) (*model.AttendanceEvent, error)
}

type Result struct {
	Imported int      `json:"imported"`
	Existing int      `json:"existing"`
	Rejected []string `json:"rejected,omitempty"`
}

type Importer struct {
	registry Registry
	location *time.Location
	logger   *logrus.Logger
}

func New(reg Registry, loc *time.Location) *Importer {
	if loc == nil {
		loc = time.UTC
	}
	return &Importer{registry: reg, location: loc, logger: config.GetLogger()}
}

// ImportCSV records every punch of the file as a pending LOCAL event. Rows
// naming an unknown person are rejected individually; re-importing a file
// records nothing new.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader) (*Result, error) {
	punches, err := ParsePunchCSV(r, im.location)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, punches)
}

func (im *Importer) Import(ctx context.Context, punches []Punch) (*Result, error) {
	result := &Result{}
	identities := map[string]*model.Identity{}

	for _, punch := range InferDirections(punches, im.location) {
		identity, ok := identities[punch.NationalID]
		if !ok {
			found, err := im.registry.FindIdentityByNationalID(ctx, punch.NationalID)
			if err != nil {
				return result, err
			}
			identity = found
			identities[punch.NationalID] = identity
		}
		if identity == nil {
			result.Rejected = append(result.Rejected, fmt.Sprintf("row %d: unknown national id %s", punch.Line, punch.NationalID))
			continue
		}

		local := registry.LocalPunch{
			IdentityID: identity.ID,
			Direction:  punch.Direction,
			Timestamp:  punch.Timestamp,
			TerminalSN: punch.Terminal,
		}
		exists, err := im.registry.HasLocalEvent(ctx, local)
		if err != nil {
			return result, err
		}
		if exists {
			result.Existing++
			continue
		}
		if _, err := im.registry.RecordLocalEvent(ctx, local); err != nil {
			return result, err
		}
		result.Imported++
	}

	im.logger.WithFields(logrus.Fields{
		"module":   "attendance/importer",
		"imported": result.Imported,
		"existing": result.Existing,
		"rejected": len(result.Rejected),
	}).Info("punch import finished")
	return result, nil
}
