package v1

import (
	"encoding/json"
	"time"
)

const terminalsPath = "/iclock/api/terminals/"

type TerminalDTO struct {
	ID           int64  `json:"id" validate:"required,gt=0"`
	SN           string `json:"sn" validate:"required"`
	Alias        string `json:"alias"`
	IPAddress    string `json:"ip_address"`
	State        int    `json:"state"`
	LastActivity string `json:"last_activity"`
}

type RemoteTerminal struct {
	ID           int64      `json:"id"`
	SN           string     `json:"sn"`
	Alias        string     `json:"alias"`
	IPAddress    string     `json:"ipAddress"`
	Online       bool       `json:"online"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
}

type TerminalEndpoint struct {
	transport *Transport
	location  *time.Location
	pageSize  int
}

func (ep *TerminalEndpoint) List() *Pager[RemoteTerminal] {
	return newPager(ep.transport, terminalsPath, nil, ep.pageSize, ep.decode)
}

func (ep *TerminalEndpoint) decode(raw json.RawMessage) (RemoteTerminal, error) {
	var dto TerminalDTO
	if err := decodeRecord("terminal", raw, &dto); err != nil {
		return RemoteTerminal{}, err
	}
	t := RemoteTerminal{
		ID:        dto.ID,
		SN:        dto.SN,
		Alias:     dto.Alias,
		IPAddress: dto.IPAddress,
		Online:    dto.State == 1,
	}
	if at, err := time.ParseInLocation(PunchTimeLayout, dto.LastActivity, ep.location); err == nil {
		t.LastActivity = &at
	}
	return t, nil
}
