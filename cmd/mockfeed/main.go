package main

import (
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"ticker-monitor/src/logger"
	"ticker-monitor/src/mockfeed"

	"github.com/gorilla/mux"
)

func main() {
	addr := flag.String("addr", ":9443", "listen address")
	path := flag.String("path", "/ws", "websocket path")
	symbols := flag.String("symbols", "BTCUSDT,ETHUSDT,BNBUSDT,SOLUSDT,XRPUSDT,ADAUSDT,DOGEUSDT,LTCUSDT", "comma separated symbols")
	interval := flag.Duration("interval", 250*time.Millisecond, "delay between ticker frames")
	drop := flag.Duration("drop", 0, "sever every connection after this long (0 = never)")
	volatility := flag.Float64("volatility", 0.2, "per-tick price shock, percent")
	growth := flag.Float64("volume-growth", 0.01, "per-tick volume growth ratio")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	appLogger := logger.New(os.Stdout, *level, "mockfeed")

	feed := mockfeed.NewServer(mockfeed.Config{
		Symbols: strings.Split(*symbols, ","),
		BasePrices: map[string]float64{
			"BTCUSDT": 65000, "ETHUSDT": 3200, "BNBUSDT": 580, "SOLUSDT": 150,
			"XRPUSDT": 0.55, "ADAUSDT": 0.45, "DOGEUSDT": 0.12, "LTCUSDT": 80,
		},
		Interval:     *interval,
		DropAfter:    *drop,
		Volatility:   *volatility,
		VolumeGrowth: *growth,
		Seed:         uint64(time.Now().UnixNano()),
	}, appLogger)

	router := mux.NewRouter()
	router.Handle(*path, feed)

	appLogger.Info("mock feed listening on ws://localhost%s%s (interval %s, drop %s)", *addr, *path, *interval, *drop)
	if err := http.ListenAndServe(*addr, router); err != nil {
		appLogger.Critical("mock feed server error: %v", err)
		os.Exit(1)
	}
}
