package core

import (
	"context"
	"iter"

	v1 "accessadmin.com/accessadmin/deviceapi/v1"
)

// ClientAPI adapts *v1.DeviceClient to DeviceAPI.
type ClientAPI struct {
	Client *v1.DeviceClient
}

func NewClientAPI(client *v1.DeviceClient) *ClientAPI {
	return &ClientAPI{Client: client}
}

func (a *ClientAPI) Transactions(ctx context.Context, filter v1.TransactionFilter) iter.Seq2[v1.RemoteTransaction, error] {
	return a.Client.Transactions.List(filter).All(ctx)
}

func (a *ClientAPI) PushTransaction(ctx context.Context, spec v1.TransactionSpec) error {
	return a.Client.Transactions.Push(ctx, spec)
}

func (a *ClientAPI) CreateEmployee(ctx context.Context, spec v1.EmployeeSpec) (int64, error) {
	return a.Client.Employees.Create(ctx, spec)
}

func (a *ClientAPI) Terminals(ctx context.Context, limit int) ([]v1.RemoteTerminal, error) {
	return a.Client.Terminals.List().Collect(ctx, limit)
}

func (a *ClientAPI) Employees(ctx context.Context, limit int) ([]v1.RemoteEmployee, error) {
	return a.Client.Employees.List(v1.EmployeeFilter{}).Collect(ctx, limit)
}
