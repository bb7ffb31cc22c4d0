package main

import (
	"github.com/favbox/insaner/app/middlewares/server/accesslog"
	"github.com/favbox/insaner/app/server"
	"github.com/favbox/insaner/common/config"
	"github.com/favbox/insaner/common/hlog"
	"github.com/favbox/insaner/common/hlog/zaplog"
	"github.com/favbox/insaner/extension/cors"
	"github.com/favbox/insaner/extension/metrics"
	"github.com/favbox/insaner/extension/static"
)

// setup 加载配置并组装服务器，root 非空时覆盖静态根目录。
func setup(configPath, root string) (*server.Server, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	if root != "" {
		cfg.Static.Root = root
	}
	if err = configureLogger(cfg.Log); err != nil {
		return nil, err
	}
	return newServer(cfg), nil
}

func configureLogger(c config.LogSection) error {
	lv, err := hlog.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	if c.Format == "json" {
		hlog.SetLogger(zaplog.New())
	}
	hlog.SetLevel(lv)
	return nil
}

func newServer(cfg *config.FileConfig) *server.Server {
	s := server.Default(cfg.Options()...)

	accesslog.Install(s.Engine)
	if cfg.Metrics.Enabled {
		metrics.Install(s.Engine, metrics.New(nil), cfg.Metrics.Path)
	}
	if cfg.CORS.Enabled {
		cors.Install(s.Engine, &cors.Options{
			Origin:      cfg.CORS.Origin,
			Methods:     cfg.CORS.Methods,
			Headers:     cfg.CORS.Headers,
			Credentials: cfg.CORS.Credentials,
			MaxAge:      cfg.CORS.MaxAge,
		})
	}
	static.Install(s.Router, cfg.Static.Prefix, cfg.Static.Root)
	return s
}
