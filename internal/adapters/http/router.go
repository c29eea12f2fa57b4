package http

import (
	"context"
	"net/http"

	"github.com/dkeye/cardlobby/internal/adapters/signal"
	"github.com/dkeye/cardlobby/internal/app/orch"
	"github.com/dkeye/cardlobby/internal/config"
	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	clientTokenKey = "client_token"
	userKey        = "lobby_user"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser a stable token kept in the
// signed session cookie.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get("ct").(string)
		if token == "" {
			token = genClientToken()
			session.Set("ct", token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

// AuthMiddleware trusts the identity forwarded by the auth layer in the
// X-User-ID, X-Display-Name and X-Avatar headers. Websocket upgrades may
// carry it in the query instead. With allowGuests the client token stands
// in for a missing identity.
func AuthMiddleware(allowGuests bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-User-ID")
		name := c.GetHeader("X-Display-Name")
		avatar := c.GetHeader("X-Avatar")
		if id == "" && c.IsWebsocket() {
			id, name, avatar = c.Query("user_id"), c.Query("name"), c.Query("avatar")
		}
		if id == "" && allowGuests {
			id = c.GetString(clientTokenKey)
			if name == "" && len(id) >= 8 {
				name = "guest-" + id[:8]
			}
		}
		user, err := domain.NewUser(id, name, avatar)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(userKey, *user)
		c.Next()
	}
}

const engineAccount = "engine"

// EngineAuth admits only the game engine, which authenticates with HTTP basic
// auth as user "engine" and the configured token. Without a token the engine
// routes refuse everyone.
func EngineAuth(token string) gin.HandlerFunc {
	if token == "" {
		log.Warn().Str("module", "adapters.http").Msg("engine_token not set, engine routes disabled")
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "engine_unauthorized", Message: "engine routes are disabled"})
		}
	}
	return gin.BasicAuthForRealm(gin.Accounts{engineAccount: token}, "engine")
}

func currentUser(c *gin.Context) domain.User {
	u, _ := c.Get(userKey)
	user, _ := u.(domain.User)
	return user
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("LobbySessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": o.Presence.Count(),
			"tables":   len(o.Tables.All()),
		})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.Use(AuthMiddleware(cfg.Mode != "release"))

	h := &handlers{orch: o}
	api.GET("/tables", h.listTables)
	api.POST("/tables", h.createTable)
	api.GET("/tables/:id", h.getTable)
	api.POST("/tables/:id/join", h.joinTable)
	api.POST("/tables/:id/leave", h.leaveTable)
	api.GET("/peers", h.listPeers)
	api.POST("/invitations", h.invite)
	api.GET("/invitations/:id", h.getInvitation)
	api.POST("/invitations/:id/respond", h.respond)

	engine := r.Group("/engine")
	engine.Use(EngineAuth(cfg.EngineToken))
	engine.POST("/tables/:id/start", h.startTable)
	engine.POST("/tables/:id/finish", h.finishTable)

	ctrl := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	})
	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString(clientTokenKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c, currentUser(c), domain.TableID(c.Query("table")))
	})

	return r
}
