// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	log "github.com/ChainSafe/log15"
)

// ErrShutdownIncomplete is returned when one or more services failed to
// acknowledge shutdown within the grace deadline. Logged by the caller, not
// fatal to process exit.
var ErrShutdownIncomplete = errors.New("shutdown incomplete")

// Service must be implemented by all node services. Start must not block;
// Stop must cancel the service's loops and return once they have exited.
type Service interface {
	Start() error
	Stop() error
}

// ServiceRegistry supervises the lifetime of every background service and
// drives coordinated shutdown.
type ServiceRegistry struct {
	services     map[reflect.Type]Service
	serviceTypes []reflect.Type
	logger       log.Logger
}

// NewServiceRegistry creates an empty registry.
func NewServiceRegistry(logger log.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[reflect.Type]Service),
		logger:   logger,
	}
}

// RegisterService stores a new service in the registry. Registering a second
// service of the same type is ignored.
func (s *ServiceRegistry) RegisterService(service Service) {
	kind := reflect.TypeOf(service)
	if _, exists := s.services[kind]; exists {
		s.logger.Warn("tried to register service type that already exists", "type", kind)
		return
	}
	s.services[kind] = service
	s.serviceTypes = append(s.serviceTypes, kind)
}

// StartAll calls Start on all registered services in registration order.
// A service that fails to start stops the services already running and the
// error is returned, so a half-started node never keeps running.
func (s *ServiceRegistry) StartAll() error {
	s.logger.Info("starting services", "services", s.serviceTypes)
	for i, typ := range s.serviceTypes {
		s.logger.Debug("starting service", "type", typ)
		if err := s.services[typ].Start(); err != nil {
			for j := i - 1; j >= 0; j-- {
				if stopErr := s.services[s.serviceTypes[j]].Stop(); stopErr != nil {
					s.logger.Error("error stopping service",
						"type", s.serviceTypes[j], "error", stopErr)
				}
			}
			return fmt.Errorf("cannot start service %s: %w", typ, err)
		}
	}
	s.logger.Debug("all services started")
	return nil
}

// StopAll calls Stop on all registered services in reverse registration
// order, so dependants stop before their dependencies.
func (s *ServiceRegistry) StopAll() {
	s.logger.Info("stopping services", "services", s.serviceTypes)
	for i := len(s.serviceTypes) - 1; i >= 0; i-- {
		typ := s.serviceTypes[i]
		s.logger.Debug("stopping service", "type", typ)
		if err := s.services[typ].Stop(); err != nil {
			s.logger.Error("error stopping service", "type", typ, "error", err)
		}
	}
	s.logger.Debug("all services stopped")
}

// StopAllWithDeadline stops all services concurrently and waits up to the
// grace deadline for each to acknowledge. Services still running at the
// deadline are reported via ErrShutdownIncomplete.
func (s *ServiceRegistry) StopAllWithDeadline(grace time.Duration) error {
	s.logger.Info("stopping services", "services", s.serviceTypes, "grace", grace)

	type ack struct {
		typ reflect.Type
		err error
	}

	done := make(chan ack, len(s.serviceTypes))
	var wg sync.WaitGroup
	for _, typ := range s.serviceTypes {
		wg.Add(1)
		go func(typ reflect.Type, srvc Service) {
			defer wg.Done()
			done <- ack{typ: typ, err: srvc.Stop()}
		}(typ, s.services[typ])
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	pending := make(map[reflect.Type]bool, len(s.serviceTypes))
	for _, typ := range s.serviceTypes {
		pending[typ] = true
	}

	deadline := time.After(grace)
	for len(pending) > 0 {
		select {
		case a, ok := <-done:
			if !ok {
				return nil
			}
			if a.err != nil {
				s.logger.Error("error stopping service", "type", a.typ, "error", a.err)
			}
			delete(pending, a.typ)
		case <-deadline:
			laggards := make([]string, 0, len(pending))
			for typ := range pending {
				laggards = append(laggards, typ.String())
			}
			return fmt.Errorf("%w: %s did not acknowledge within %s",
				ErrShutdownIncomplete, strings.Join(laggards, ", "), grace)
		}
	}
	return nil
}

// Get retrieves the registered service with the same type as the argument.
func (s *ServiceRegistry) Get(srvc interface{}) Service {
	if reflect.TypeOf(srvc).Kind() != reflect.Ptr {
		s.logger.Warn("expected a pointer", "got", fmt.Sprintf("%T", srvc))
		return nil
	}

	if found, ok := s.services[reflect.TypeOf(srvc)]; ok {
		return found
	}
	s.logger.Warn("unknown service type", "type", fmt.Sprintf("%T", srvc))
	return nil
}
