package main

import (
	"context"
	"net/http"

	"github.com/decred/dcrd/chaincfg/v3"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/riftlink/riftlink/anchor"
	"github.com/riftlink/riftlink/dashboard"
	"github.com/riftlink/riftlink/gateway"
	"github.com/riftlink/riftlink/linker"
	"github.com/riftlink/riftlink/riot"
	"github.com/sirupsen/logrus"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	logrusLogger = logrus.New()
	logSampling  gateway.LogSamplingConfig
)

type services struct {
	auth      *gateway.JWTAuth
	linker    *linker.Service
	anchor    *anchor.Service
	dashboard *dashboard.Service
}

// tokenRequest is the dev token exchange body. The frontend swaps the
// connected wallet address for a bearer token; signature proof of the wallet
// key is handled upstream.
type tokenRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

func tokenHandler(auth *gateway.JWTAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "validation_error", "message": "wallet_address is required"})
			return
		}
		token, err := auth.GenerateJWT(req.WalletAddress)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": "internal_error", "message": "issuing token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

// GetMainEngine wires every route to its service.
func GetMainEngine(svc services) *gin.Engine {
	route := gin.New()
	route.Use(gin.Recovery())
	route.Use(gateway.RequestID())
	route.Use(gateway.RequestLogger(logrusLogger, logSampling))
	route.Use(gateway.OptionsMiddleware)
	route.HandleMethodNotAllowed = true

	prom := ginprometheus.NewPrometheus("riftlink")
	prom.Use(route)

	route.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	route.POST("/auth/token", tokenHandler(svc.auth))

	cons := route.Group("/consumer")
	cons.Use(svc.auth.AuthMiddleware())
	{
		cons.POST("/link", svc.linker.LinkAccount)
		cons.POST("/verify", svc.linker.VerifyAccount)
		cons.GET("/accounts", svc.linker.ListAccounts)
		cons.DELETE("/accounts/:id", svc.linker.UnlinkAccount)

		cons.POST("/anchor", svc.anchor.CreateAnchor)
		cons.GET("/anchor/:id", svc.anchor.GetAnchor)
		cons.GET("/anchors", svc.anchor.ListAnchors)
	}

	dash := route.Group("/dashboard")
	dash.Use(svc.auth.AuthMiddleware())
	{
		dash.GET("/status", svc.dashboard.GetStatus)
		dash.GET("/anchors", svc.dashboard.ListAnchors)
	}

	return route
}

func chainParams(network string) *chaincfg.Params {
	switch network {
	case "mainnet":
		return chaincfg.MainNetParams()
	case "simnet":
		return chaincfg.SimNetParams()
	default:
		return chaincfg.TestNet3Params()
	}
}

func main() {
	cfg := ParseConfig()
	configureLogger(cfg)

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		logrusLogger.Fatalf("error in connecting to db: %v", err)
	}
	if cfg.IsDebug {
		db.Logger = db.Logger.LogMode(logger.Info)
	}
	if err := db.AutoMigrate(&riot.LinkedAccount{}, &anchor.Anchor{}); err != nil {
		logrusLogger.Fatalf("error in migrating db: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logrusLogger.Fatalf("bad redis url: %v", err)
		}
		redisClient = redis.NewClient(opts)
	} else {
		logrusLogger.Info("redis not configured; resolve caching disabled")
	}

	riotClient := riot.NewClient(cfg.RiotAPIKey, cfg.RiotTimeout, logrusLogger)
	riotClient.BaseURL = cfg.RiotBaseURL
	if !riotClient.Configured() {
		logrusLogger.Warn("riot api key not configured; linking will fail until it is set")
	}

	auth := &gateway.JWTAuth{Key: []byte(cfg.JWTSecret)}
	auth.Init()

	var wallet anchor.Wallet
	if cfg.WalletConfigured() {
		rpcWallet, err := anchor.NewRPCWallet(anchor.RPCConfig{
			Host:     cfg.WalletRPCHost,
			User:     cfg.WalletRPCUser,
			Pass:     cfg.WalletRPCPass,
			CertPath: cfg.WalletRPCCert,
			FeeAtoms: cfg.AnchorFeeAtoms,
		}, chainParams(cfg.ChainNetwork), logrusLogger)
		if err != nil {
			logrusLogger.Fatalf("error in connecting to wallet: %v", err)
		}
		defer rpcWallet.Shutdown()
		wallet = rpcWallet
	} else {
		logrusLogger.Info("wallet rpc not configured; anchoring disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var watcher *anchor.Watcher
	if wallet != nil {
		watcher = anchor.NewWatcher(db, wallet, cfg.AnchorConfirmations, cfg.AnchorPollInterval, logrusLogger)
		go watcher.Run(ctx)
		defer watcher.Stop()
	}

	svc := services{
		auth:   auth,
		linker: &linker.Service{Db: db, Redis: redisClient, Logger: logrusLogger, Riot: riotClient},
		anchor: &anchor.Service{
			Db:          db,
			Logger:      logrusLogger,
			Wallet:      wallet,
			Network:     cfg.ChainNetwork,
			ExplorerURL: cfg.ExplorerURL,
			Watcher:     watcher,
		},
		dashboard: &dashboard.Service{Db: db, Logger: logrusLogger, Wallet: wallet},
	}

	route := GetMainEngine(svc)
	logrusLogger.WithFields(logrus.Fields{"port": cfg.Port}).Info("riftlink listening")
	if err := route.Run(":" + cfg.Port); err != nil {
		logrusLogger.Fatalf("server exited: %v", err)
	}
}
