package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sharehold/internal/authorization"
	"github.com/smallbiznis/sharehold/internal/clock"
	"github.com/smallbiznis/sharehold/internal/config"
	"github.com/smallbiznis/sharehold/internal/events"
	"github.com/smallbiznis/sharehold/internal/identity"
	"github.com/smallbiznis/sharehold/internal/invitation"
	"github.com/smallbiznis/sharehold/internal/migration"
	"github.com/smallbiznis/sharehold/internal/observability"
	"github.com/smallbiznis/sharehold/internal/organization"
	"github.com/smallbiznis/sharehold/internal/provisioning"
	"github.com/smallbiznis/sharehold/internal/ratelimit"
	"github.com/smallbiznis/sharehold/internal/server"
	"github.com/smallbiznis/sharehold/internal/subscription"
	"github.com/smallbiznis/sharehold/internal/tier"
	"github.com/smallbiznis/sharehold/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		identity.Module,
		events.Module,
		ratelimit.Module,

		// Functional Domains
		organization.Module,
		authorization.Module,
		subscription.Module,
		tier.Module,
		invitation.Module,
		provisioning.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
