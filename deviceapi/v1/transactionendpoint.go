package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"accessadmin.com/accessadmin/deviceapi/v1/common"
)

const (
	transactionsPath = "/iclock/api/transactions/"
	// PunchTimeLayout is how the device API writes and reads punch times,
	// always in the device timezone.
	PunchTimeLayout = "2006-01-02 15:04:05"
)

// PunchState is the device's punch classification.
type PunchState string

const (
	PunchCheckIn     PunchState = "0"
	PunchCheckOut    PunchState = "1"
	PunchBreakOut    PunchState = "2"
	PunchBreakIn     PunchState = "3"
	PunchOvertimeIn  PunchState = "4"
	PunchOvertimeOut PunchState = "5"
)

// IsCheckIn reports whether the punch enters the facility.
func (s PunchState) IsCheckIn() bool {
	return s == PunchCheckIn || s == PunchBreakIn || s == PunchOvertimeIn
}

type TransactionDTO struct {
	ID         int64      `json:"id" validate:"required,gt=0"`
	EmpCode    string     `json:"emp_code" validate:"required"`
	PunchTime  string     `json:"punch_time" validate:"required"`
	PunchState PunchState `json:"punch_state" validate:"required,oneof=0 1 2 3 4 5"`
	TerminalSN string     `json:"terminal_sn,omitempty"`
	Source     int        `json:"source,omitempty"`
}

// RemoteTransaction is a validated punch read from the device API.
type RemoteTransaction struct {
	ID         string
	EmpCode    string
	PunchTime  time.Time
	PunchState PunchState
	TerminalSN string
}

type TransactionFilter struct {
	StartTime time.Time
	EndTime   time.Time
	EmpCode   string
	PageSize  int
}

// TransactionSpec describes a locally recorded punch to push outward.
type TransactionSpec struct {
	EmpCode    string     `validate:"required"`
	PunchTime  time.Time  `validate:"required"`
	PunchState PunchState `validate:"oneof=0 1 2 3 4 5"`
	TerminalSN string
}

type TransactionEndpoint struct {
	transport *Transport
	location  *time.Location
	pageSize  int
}

// List returns a lazy pager over transactions matching filter, in the order
// the device API returns them (chronological by punch time).
func (ep *TransactionEndpoint) List(filter TransactionFilter) *Pager[RemoteTransaction] {
	q := url.Values{}
	if !filter.StartTime.IsZero() {
		q.Set("start_time", filter.StartTime.In(ep.location).Format(PunchTimeLayout))
	}
	if !filter.EndTime.IsZero() {
		q.Set("end_time", filter.EndTime.In(ep.location).Format(PunchTimeLayout))
	}
	if filter.EmpCode != "" {
		q.Set("emp_code", filter.EmpCode)
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = ep.pageSize
	}
	return newPager(ep.transport, transactionsPath, q, pageSize, ep.decode)
}

func (ep *TransactionEndpoint) decode(raw json.RawMessage) (RemoteTransaction, error) {
	var dto TransactionDTO
	if err := decodeRecord("transaction", raw, &dto); err != nil {
		return RemoteTransaction{}, err
	}
	id := strconv.FormatInt(dto.ID, 10)
	punchTime, err := time.ParseInLocation(PunchTimeLayout, dto.PunchTime, ep.location)
	if err != nil {
		return RemoteTransaction{}, &MalformedError{Kind: "transaction", ID: id, Err: fmt.Errorf("punch_time: %w", err)}
	}
	return RemoteTransaction{
		ID:         id,
		EmpCode:    dto.EmpCode,
		PunchTime:  punchTime,
		PunchState: dto.PunchState,
		TerminalSN: dto.TerminalSN,
	}, nil
}

// Push records a punch on the device API. The remote side de-duplicates by
// employee and punch time, so repeating a push is harmless.
func (ep *TransactionEndpoint) Push(ctx context.Context, spec TransactionSpec) error {
	if err := validate.Struct(spec); err != nil {
		return fmt.Errorf("invalid transaction spec: %w", err)
	}

	dto := TransactionDTO{
		EmpCode:    spec.EmpCode,
		PunchTime:  spec.PunchTime.In(ep.location).Format(PunchTimeLayout),
		PunchState: spec.PunchState,
		TerminalSN: spec.TerminalSN,
	}
	resp, err := ep.transport.Post(ctx, transactionsPath, dto)
	if err != nil {
		return err
	}

	var status common.StatusResponse
	if len(resp.Data) > 0 && json.Unmarshal(resp.Data, &status) == nil && status.Code != 0 {
		return &RemoteError{Method: http.MethodPost, Path: transactionsPath, StatusCode: resp.StatusCode, Body: fmt.Sprintf("code %d: %s", status.Code, status.Msg)}
	}
	return nil
}
