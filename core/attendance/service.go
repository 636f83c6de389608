package attendance

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/gateway"
	"github.com/hoopdesk/hoopdesk/core/retry"
)

const procSaveBatch = "rpc_save_attendance_batch"

type (
	Repository interface {
		ForEvent(ctx context.Context, eventID string) ([]Record, error)
		ForPlayer(ctx context.Context, playerID string, from, to time.Time) ([]Record, error)
		ReportRows(ctx context.Context, teamID string, from, to time.Time) ([]ReportRow, error)
	}

	// SummaryInvalidator drops cached membership summaries; membership.Service implements it.
	SummaryInvalidator interface {
		InvalidateSummary(userID string)
	}

	Service struct {
		gw          gateway.Gateway
		repo        Repository
		summaries   SummaryInvalidator
		readOptions retry.Options
	}
)

func NewService(gw gateway.Gateway, repo Repository, summaries SummaryInvalidator, readOptions retry.Options) *Service {
	return &Service{gw: gw, repo: repo, summaries: summaries, readOptions: readOptions}
}

// SaveBatch upserts a batch of attendance marks in one procedure call.
// Credits are adjusted by the net effect of each status change, server side.
func (svc *Service) SaveBatch(ctx context.Context, records []RecordInput) (BatchResult, error) {
	if err := checkBatch(records); err != nil {
		return BatchResult{}, err
	}

	var res BatchResult
	if err := svc.gw.Call(ctx, procSaveBatch, []gateway.Param{gateway.P("p_records", records)}, &res); err != nil {
		return BatchResult{}, errors.Wrap(err, "saving attendance")
	}
	for _, c := range res.Credits {
		if c.UserID.Valid && c.Delta != 0 {
			svc.summaries.InvalidateSummary(c.UserID.String)
		}
	}
	return res, nil
}

// checkBatch does the presence and type checks; business rules live in the procedure.
func checkBatch(records []RecordInput) error {
	if len(records) == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "records", Error: "this field is required"})
	}
	seen := make(map[string]int, len(records))
	var flds []core.FieldError
	for i, r := range records {
		prefix := "records[" + strconv.Itoa(i) + "]."
		if r.EventID == "" {
			flds = append(flds, core.FieldError{Field: prefix + "event_id", Error: "this field is required"})
		}
		if r.PlayerID == "" {
			flds = append(flds, core.FieldError{Field: prefix + "player_id", Error: "this field is required"})
		}
		if !r.Status.Valid() {
			flds = append(flds, core.FieldError{Field: prefix + "status", Error: "status must be one of: present, absent, late, excused"})
		}
		key := r.EventID + "/" + r.PlayerID
		if j, dup := seen[key]; dup {
			flds = append(flds, core.FieldError{Field: prefix + "player_id", Error: fmt.Sprintf("duplicates records[%d]", j)})
		}
		seen[key] = i
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func (svc *Service) ForEvent(ctx context.Context, eventID string) ([]Record, error) {
	var recs []Record
	err := gateway.Read(ctx, svc.readOptions, func(ctx context.Context) error {
		var err error
		recs, err = svc.repo.ForEvent(ctx, eventID)
		return err
	})
	return recs, errors.Wrap(err, "querying event attendance")
}

func (svc *Service) ForPlayer(ctx context.Context, playerID string, from, to time.Time) ([]Record, error) {
	var recs []Record
	err := gateway.Read(ctx, svc.readOptions, func(ctx context.Context) error {
		var err error
		recs, err = svc.repo.ForPlayer(ctx, playerID, from, to)
		return err
	})
	return recs, errors.Wrap(err, "querying player attendance")
}

// Export renders the attendance of a team between from and to as an XLSX workbook.
func (svc *Service) Export(ctx context.Context, teamID string, from, to time.Time) (*bytes.Buffer, error) {
	var rows []ReportRow
	err := gateway.Read(ctx, svc.readOptions, func(ctx context.Context) error {
		var err error
		rows, err = svc.repo.ReportRows(ctx, teamID, from, to)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance report")
	}
	buf, err := writeWorkbook(rows)
	return buf, errors.Wrap(err, "writing attendance workbook")
}
