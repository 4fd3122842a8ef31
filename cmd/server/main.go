package main

import (
	"github.com/SpelGekko/Chat-Website/internal/config"
	clog "github.com/SpelGekko/Chat-Website/internal/log"
	"github.com/SpelGekko/Chat-Website/internal/registry"
	"github.com/SpelGekko/Chat-Website/internal/server"
	"github.com/SpelGekko/Chat-Website/internal/service"
	"github.com/SpelGekko/Chat-Website/internal/session"
	"github.com/SpelGekko/Chat-Website/internal/ws"

	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration, initialize logging, wire the room engine, start gin.
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	reg := registry.New(cfg.RoomCodeLength)
	tracker := session.NewTracker()
	hub := ws.NewHub(reg, tracker)
	roomSvc := service.NewRoomService(reg, hub)
	hub.SetPermissions(roomSvc)

	h := server.NewHandler(cfg, roomSvc, reg)
	r := server.SetupRouter(cfg, h, hub, tracker)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
