package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const employeesPath = "/personnel/api/employees/"

type EmployeeDTO struct {
	ID         int64   `json:"id" validate:"required,gt=0"`
	EmpCode    string  `json:"emp_code" validate:"required"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Department *IDName `json:"department"`
	HireDate   string  `json:"hire_date"`
}

type IDName struct {
	ID   int64  `json:"id"`
	Name string `json:"dept_name"`
}

type RemoteEmployee struct {
	ID         int64
	EmpCode    string
	FirstName  string
	LastName   string
	Department string
	HireDate   *time.Time
}

type EmployeeFilter struct {
	EmpCode  string
	PageSize int
}

// EmployeeSpec is the payload for registering a person on the device API.
type EmployeeSpec struct {
	EmpCode    string  `json:"emp_code" validate:"required,max=20"`
	FirstName  string  `json:"first_name" validate:"required"`
	LastName   string  `json:"last_name"`
	Department int64   `json:"department,omitempty"`
	Areas      []int64 `json:"area,omitempty"`
}

type EmployeeEndpoint struct {
	transport *Transport
	pageSize  int
	// DefaultDepartment and DefaultAreas fill specs that carry none.
	DefaultDepartment int64
	DefaultAreas      []int64
}

func (ep *EmployeeEndpoint) List(filter EmployeeFilter) *Pager[RemoteEmployee] {
	q := url.Values{}
	if filter.EmpCode != "" {
		q.Set("emp_code", filter.EmpCode)
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = ep.pageSize
	}
	return newPager(ep.transport, employeesPath, q, pageSize, decodeEmployee)
}

func decodeEmployee(raw json.RawMessage) (RemoteEmployee, error) {
	var dto EmployeeDTO
	if err := decodeRecord("employee", raw, &dto); err != nil {
		return RemoteEmployee{}, err
	}
	return dto.toRemote(), nil
}

func (dto EmployeeDTO) toRemote() RemoteEmployee {
	e := RemoteEmployee{
		ID:        dto.ID,
		EmpCode:   dto.EmpCode,
		FirstName: dto.FirstName,
		LastName:  dto.LastName,
	}
	if dto.Department != nil {
		e.Department = dto.Department.Name
	}
	if t, err := time.Parse(time.DateOnly, dto.HireDate); err == nil {
		e.HireDate = &t
	}
	return e
}

// Create registers an employee and returns its remote id. An employee code
// that already exists remotely yields *ConflictError.
func (ep *EmployeeEndpoint) Create(ctx context.Context, spec EmployeeSpec) (int64, error) {
	if err := validate.Struct(spec); err != nil {
		return 0, fmt.Errorf("invalid employee spec: %w", err)
	}
	if spec.Department == 0 {
		spec.Department = ep.DefaultDepartment
	}
	if len(spec.Areas) == 0 {
		spec.Areas = ep.DefaultAreas
	}

	resp, err := ep.transport.Post(ctx, employeesPath, spec)
	if err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) && isConflict(remote) {
			return 0, &ConflictError{Code: spec.EmpCode, Body: remote.Body}
		}
		return 0, err
	}

	var dto EmployeeDTO
	if err := decodeRecord("employee", resp.Data, &dto); err != nil {
		return 0, &RemoteError{Method: http.MethodPost, Path: employeesPath, StatusCode: resp.StatusCode, Err: err}
	}
	return dto.ID, nil
}

// isConflict reports an employee code collision: a 409, or a 400 whose
// emp_code field errors say the code already exists. Other 400s, such as an
// unknown department, stay RemoteErrors.
func isConflict(e *RemoteError) bool {
	if e.StatusCode == http.StatusConflict {
		return true
	}
	if e.StatusCode != http.StatusBadRequest {
		return false
	}
	var fields map[string][]string
	if err := json.Unmarshal([]byte(e.Body), &fields); err != nil {
		return false
	}
	for _, msg := range fields["emp_code"] {
		if strings.Contains(strings.ToLower(msg), "already exists") {
			return true
		}
	}
	return false
}

