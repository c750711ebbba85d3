package domain

// Block represents a block announced by a source chain
type Block struct {
	SourceIndex int
	Number      uint64
	Hash        string
	ParentHash  string
	Payload     []byte
}

// RelayItem is one block tagged with the feed it is archived under.
type RelayItem struct {
	FeedID FeedID
	Block  Block
}

// SourceIndex returns the index of the source the item was observed on.
func (i RelayItem) SourceIndex() int {
	return i.Block.SourceIndex
}
