package data

import (
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"
)

// Narrative is the derived text record for a profile, at most one per
// crd_number. Regeneration replaces the row, it never appends.
type Narrative struct {
	ID            int64     `gorm:"column:narrative_pk;primaryKey;autoIncrement"`
	CRDNumber     int64     `gorm:"column:crd_number;uniqueIndex"`
	NarrativeText string    `gorm:"column:narrative_text"`
	Embedding     Vector    `gorm:"column:embedding"`
	Source        string    `gorm:"column:source"`
	GeneratedAt   time.Time `gorm:"column:generated_at"`
}

func (Narrative) TableName() string {
	return "ria_narratives"
}

func (n Narrative) QdrantPayload() map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		"crd_number": {Kind: &qdrant.Value_IntegerValue{IntegerValue: n.CRDNumber}},
		"narrative":  {Kind: &qdrant.Value_StringValue{StringValue: n.NarrativeText}},
		"source":     {Kind: &qdrant.Value_StringValue{StringValue: n.Source}},
		"date":       {Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(n.GeneratedAt.Unix())}},
	}
}

func FromQdrantPayload(payload map[string]*qdrant.Value) Narrative {
	n := Narrative{}
	if v, ok := payload["crd_number"]; ok {
		n.CRDNumber = v.GetIntegerValue()
	}
	if v, ok := payload["narrative"]; ok {
		n.NarrativeText = v.GetStringValue()
	}
	if v, ok := payload["source"]; ok {
		n.Source = v.GetStringValue()
	}
	if v, ok := payload["date"]; ok {
		n.GeneratedAt = time.Unix(int64(v.GetDoubleValue()), 0)
	}
	return n
}
