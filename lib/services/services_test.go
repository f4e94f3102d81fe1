// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package services

import (
	"errors"
	"testing"
	"time"

	log "github.com/ChainSafe/log15"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	started  int
	stopped  int
	startErr error
	stopHang time.Duration
}

func (s *fakeService) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started++
	return nil
}

func (s *fakeService) Stop() error {
	if s.stopHang > 0 {
		time.Sleep(s.stopHang)
	}
	s.stopped++
	return nil
}

type otherService struct {
	fakeService
	order *[]string
}

func (s *otherService) Stop() error {
	if s.order != nil {
		*s.order = append(*s.order, "other")
	}
	return s.fakeService.Stop()
}

func testLogger() log.Logger {
	logger := log.New("pkg", "services")
	logger.SetHandler(log.DiscardHandler())
	return logger
}

func TestRegisterService_Duplicate(t *testing.T) {
	r := NewServiceRegistry(testLogger())

	a := &fakeService{}
	b := &fakeService{}
	r.RegisterService(a)
	r.RegisterService(b)

	require.NoError(t, r.StartAll())
	require.Equal(t, 1, a.started)
	require.Equal(t, 0, b.started)
}

func TestStartAll_FailureStopsStartedServices(t *testing.T) {
	r := NewServiceRegistry(testLogger())

	a := &fakeService{}
	b := &otherService{fakeService: fakeService{startErr: errors.New("address in use")}}
	r.RegisterService(a)
	r.RegisterService(b)

	err := r.StartAll()
	require.Error(t, err)
	require.Contains(t, err.Error(), "address in use")
	require.Equal(t, 1, a.started)
	require.Equal(t, 1, a.stopped)
	require.Equal(t, 0, b.started)
}

func TestStartStopAll(t *testing.T) {
	r := NewServiceRegistry(testLogger())

	a := &fakeService{}
	b := &otherService{}
	r.RegisterService(a)
	r.RegisterService(b)

	require.NoError(t, r.StartAll())
	require.Equal(t, 1, a.started)
	require.Equal(t, 1, b.started)

	r.StopAll()
	require.Equal(t, 1, a.stopped)
	require.Equal(t, 1, b.stopped)
}

func TestGet(t *testing.T) {
	r := NewServiceRegistry(testLogger())

	a := &fakeService{}
	r.RegisterService(a)

	require.Equal(t, a, r.Get(&fakeService{}))
	require.Nil(t, r.Get(&otherService{}))
	require.Nil(t, r.Get(fakeService{}))
}

func TestStopAllWithDeadline(t *testing.T) {
	r := NewServiceRegistry(testLogger())

	a := &fakeService{}
	b := &otherService{}
	r.RegisterService(a)
	r.RegisterService(b)

	require.NoError(t, r.StopAllWithDeadline(time.Second))
	require.Equal(t, 1, a.stopped)
	require.Equal(t, 1, b.stopped)
}

func TestStopAllWithDeadline_Laggard(t *testing.T) {
	r := NewServiceRegistry(testLogger())

	fast := &fakeService{}
	slow := &otherService{fakeService: fakeService{stopHang: 500 * time.Millisecond}}
	r.RegisterService(fast)
	r.RegisterService(slow)

	err := r.StopAllWithDeadline(50 * time.Millisecond)
	require.ErrorIs(t, err, ErrShutdownIncomplete)
	require.Contains(t, err.Error(), "otherService")
	require.Equal(t, 1, fast.stopped)
}
