// Package service assembles the bridge from configuration: one event callback
// per event group, one request callback per exposed API method, all
// registered on a bus router that a source driver feeds.
package service

import (
	"context"
	"errors"
	"fmt"

	"esbridge/internal/backend"
	"esbridge/internal/bus"
	"esbridge/internal/callback"
	"esbridge/internal/config"
	"esbridge/internal/logging"
	"esbridge/internal/transform"
	"esbridge/source/kafka"
)

// Backend is what the service needs from the document store.
type Backend interface {
	callback.Indexer
	Method(name string) (backend.Method, bool)
}

// Group is the runtime entry of one event group. It owns its transform.
type Group struct {
	Name      string
	Topics    []string
	Transform transform.EventTransform
	Callback  *callback.EventCallback
}

type Service struct {
	router   *bus.Router
	groups   []Group
	requests map[string]string // method -> topic
}

// Build registers every event group and every valid API method. A transform
// that fails to load in cached mode fails the build.
func Build(cfg config.Config, be Backend) (*Service, error) {
	s := &Service{router: bus.NewRouter(), requests: make(map[string]string)}
	if err := s.registerEventHandlers(cfg, be); err != nil {
		return nil, err
	}
	s.registerServices(cfg, be)
	return s, nil
}

func (s *Service) registerEventHandlers(cfg config.Config, be Backend) error {
	for _, name := range cfg.GroupNames() {
		g := cfg.EventGroups[name]
		logging.L().Debug("processing event group", "group", name, "topics", g.Topics,
			"index", g.DocumentIndex, "doc_type", g.DocumentType, "transform", g.TransformScript)

		tr, err := transform.New(g.TransformScript, name, cfg.General.ReloadTransformOnChange)
		if err != nil {
			return fmt.Errorf("event group %s: %w", name, err)
		}
		cb := callback.NewEventCallback(callback.EventGroup{
			Name:      name,
			Index:     g.DocumentIndex,
			DocType:   g.DocumentType,
			IDField:   g.IDFieldName,
			Transform: tr,
		}, be)
		for _, topic := range g.Topics {
			logging.L().Info("registering event callback", "topic", topic, "group", name)
			s.router.AddEventCallback(topic, cb)
		}
		s.groups = append(s.groups, Group{Name: name, Topics: g.Topics, Transform: tr, Callback: cb})
	}
	return nil
}

func (s *Service) registerServices(cfg config.Config, be Backend) {
	gen := cfg.General
	for _, name := range gen.APINames {
		m, ok := be.Method(name)
		if !ok {
			logging.L().Warn("elasticsearch API name is invalid", "method", name)
			continue
		}
		topic := bus.RequestTopic(gen.ServiceTopic, gen.ServiceUniqueID, name)
		if err := s.router.AddRequestCallback(topic, callback.NewRequestCallback(name, m)); err != nil {
			logging.L().Warn("skipping duplicate API name", "method", name, "err", err)
			continue
		}
		logging.L().Info("registering request callback", "method", name, "topic", topic)
		s.requests[name] = topic
	}
	if len(s.requests) == 0 {
		logging.L().Info("no valid API names; request service not registered")
	}
}

func (s *Service) Router() *bus.Router { return s.router }

func (s *Service) Groups() []Group { return s.groups }

// RequestTopics maps each exposed method to its request topic.
func (s *Service) RequestTopics() map[string]string {
	out := make(map[string]string, len(s.requests))
	for k, v := range s.requests {
		out[k] = v
	}
	return out
}

// Topics lists everything the source must subscribe to.
func (s *Service) Topics() []string { return s.router.Topics() }

// Run feeds src into the router until ctx ends. resp receives request replies.
func (s *Service) Run(ctx context.Context, src kafka.Adapter, resp bus.Responder) error {
	if src == nil {
		return errors.New("service: no source configured")
	}
	s.router.SetResponder(resp)
	return src.Run(ctx, s.Topics(), s.router.Deliver)
}
