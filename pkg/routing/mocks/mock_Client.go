// Package mocks provides test doubles for the routing client.
package mocks

import (
	"context"

	routing "github.com/sells-group/carpark-cli/pkg/routing"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Route provides a mock function with given fields: ctx, from, to
func (_m *MockClient) Route(ctx context.Context, from routing.Coord, to routing.Coord) (*routing.Route, error) {
	ret := _m.Called(ctx, from, to)

	if len(ret) == 0 {
		panic("no return value specified for Route")
	}

	var r0 *routing.Route
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, routing.Coord, routing.Coord) (*routing.Route, error)); ok {
		return rf(ctx, from, to)
	}
	if rf, ok := ret.Get(0).(func(context.Context, routing.Coord, routing.Coord) *routing.Route); ok {
		r0 = rf(ctx, from, to)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*routing.Route)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, routing.Coord, routing.Coord) error); ok {
		r1 = rf(ctx, from, to)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
