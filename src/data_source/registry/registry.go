// Package registry builds candle sources from their configured type.
package registry

import (
	"fmt"

	"level-observer/src/config"
	"level-observer/src/data_source/binance"
	"level-observer/src/data_source/polygon"
	"level-observer/src/data_source/yahoo"
	"level-observer/src/interfaces"
	"level-observer/src/logger"
	"level-observer/src/models"
)

// NewSource builds the provider named by srcCfg.Type. netMgr is only used by
// sources that go through the shared proxy-aware client.
func NewSource(cfg *models.MConfig, srcCfg models.MSourceConfig, netMgr interfaces.INetworkManager, log *logger.Logger) (interfaces.ICandleSource, error) {
	switch srcCfg.Type {
	case config.SourceYahoo:
		if netMgr == nil {
			return nil, fmt.Errorf("source %s: yahoo needs a network manager", srcCfg.Name)
		}
		return yahoo.NewYahooFinanceSource(cfg, srcCfg, netMgr, log), nil
	case config.SourceBinance:
		return binance.NewBinanceSource(cfg, srcCfg, log), nil
	case config.SourcePolygon:
		return polygon.NewPolygonSource(cfg, srcCfg, log), nil
	default:
		return nil, fmt.Errorf("unknown source type %q for %s", srcCfg.Type, srcCfg.Name)
	}
}
