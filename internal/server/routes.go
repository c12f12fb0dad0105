package server

import (
	"github.com/go-chi/chi/v5"
)

func registerAppRoutes(r chi.Router, s *Server) {
	r.Get("/", s.handleHome)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", s.handleUserList)
		r.Post("/", s.handleUserCreate)
		r.Get("/{id}", s.handleUserShow)
		r.Put("/{id}", s.handleUserUpdate)
		r.Post("/{id}", s.handleUserUpdate) // form fallback
		r.Delete("/{id}", s.handleUserDelete)
		r.Post("/{id}/delete", s.handleUserDelete) // form fallback
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.handleTaskList)
		r.Post("/", s.handleTaskCreate)
		r.Get("/{id}", s.handleTaskShow)
		r.Put("/{id}", s.handleTaskUpdate)
		r.Post("/{id}", s.handleTaskUpdate)
		r.Delete("/{id}", s.handleTaskDelete)
		r.Post("/{id}/delete", s.handleTaskDelete)
	})
}

func registerConsoleRoutes(r chi.Router, s *Server) {
	r.Get("/", s.handleConsolePanel)
	r.Get("/envelope", s.handleConsoleEnvelope)
	r.Get("/export", s.handleConsoleExport)

	r.Post("/toggle", s.handleConsoleToggle)
	r.Post("/tab", s.handleConsoleTab)
	r.Post("/resize", s.handleConsoleResize)

	r.Post("/history/select", s.handleConsoleHistorySelect)
	r.Post("/history/current", s.handleConsoleHistoryCurrent)
	r.Post("/history/clear", s.handleConsoleHistoryClear)

	r.Post("/state/toggle", s.handleConsoleStateToggle)
	r.Post("/state/filter", s.handleConsoleStateFilter)
	r.Post("/calls/filter", s.handleConsoleCallFilter)
	r.Post("/queries/filter", s.handleConsoleQueryFilter)

	r.Post("/flow/play", s.handleConsoleFlowControl("play"))
	r.Post("/flow/pause", s.handleConsoleFlowControl("pause"))
	r.Post("/flow/reset", s.handleConsoleFlowControl("reset"))
	r.Post("/flow/speed", s.handleConsoleFlowSpeed)
	r.Post("/flow/loop", s.handleConsoleFlowLoop)
	r.Get("/flow/ws", s.handleConsoleFlowSocket)
}
