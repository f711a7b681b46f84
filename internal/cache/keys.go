package cache

import (
	"fmt"
)

const keyPrefix = "errtrack"

// StatsGenerationKey holds the counter bumped whenever tracked errors are
// resolved, ignored or cleaned up. Report keys embed its value, so a bump
// orphans every cached report at once.
func StatsGenerationKey() string {
	return keyPrefix + ":stats:gen"
}

func StatsKey(generation int64, filterHash string) string {
	return fmt.Sprintf("%s:stats:%d:%s", keyPrefix, generation, filterHash)
}

func SummaryKey(generation int64, top int) string {
	return fmt.Sprintf("%s:summary:%d:%d", keyPrefix, generation, top)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("%s:ratelimit:%s", keyPrefix, client)
}
