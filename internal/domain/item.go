package domain

import "strings"

// Domain identifies one embedding/vector-index configuration.
type Domain string

const (
	DomainMeme   Domain = "meme"
	DomainTikTok Domain = "tiktok"
)

// ItemStage is the position of one uploaded item in the ingestion pipeline.
// Stages advance strictly in order; ItemStageFailed is terminal.
type ItemStage string

const (
	ItemStagePending   ItemStage = "pending"
	ItemStageStored    ItemStage = "stored"
	ItemStageDescribed ItemStage = "described"
	ItemStageEmbedded  ItemStage = "embedded"
	ItemStageIndexed   ItemStage = "indexed"
	ItemStageOwned     ItemStage = "owned"
	ItemStageFailed    ItemStage = "failed"
)

// NormalizeOwner lowercases and trims an owner identity.
func NormalizeOwner(owner string) string {
	return strings.ToLower(strings.TrimSpace(owner))
}
