package testtool

import (
	"net/http"
	_ "net/http/pprof" // 匯入後會自動註冊 pprof endpoint

	"realtime_messaging_service/pkg/config"
	"realtime_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// StartPprof 非 production 時在 addr (建議 127.0.0.1:6060) 啟動 pprof
func StartPprof(addr string) {
	if config.IsProduction() {
		logger.Log.Info("Production environment detected, pprof is disabled.")
		return
	}

	go func() {
		logger.Log.Info("Starting pprof server", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Log.Errorf("pprof server failed", err)
		}
	}()
}
