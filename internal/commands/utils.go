package commands

import (
	"strconv"

	"github.com/susu3304/warikanbot/internal/logger"
	"go.uber.org/zap"
)

func ParseGuildID(guildID string) int64 {
	id, err := strconv.ParseInt(guildID, 10, 64)
	if err != nil {
		logger.L.Warn("failed to parse guild id", zap.String("guild_id", guildID), zap.Error(err))
		return 0
	}
	return id
}
