package repository

import (
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
)

func TestPointIDIsDeterministicPerNamespace(t *testing.T) {
	a1 := pointID("a@x.com", "http://h/images/1.png").GetUuid()
	a2 := pointID("a@x.com", "http://h/images/1.png").GetUuid()
	b := pointID("b@x.com", "http://h/images/1.png").GetUuid()

	if a1 != a2 {
		t.Errorf("pointID not deterministic: %s != %s", a1, a2)
	}
	if a1 == b {
		t.Error("same item in two namespaces must map to different points")
	}
}

func TestPayloadRoundTripKeepsReservedKeys(t *testing.T) {
	md := map[string]interface{}{
		"description": "a cat",
		"width":       640,
		"animated":    false,
		"namespace":   "spoofed",
	}
	payload := buildPayload("a@x.com", "u1", "meme", md)

	if payload[payloadNamespace].GetStringValue() != "a@x.com" {
		t.Errorf("namespace = %v, reserved key was overwritten", payload[payloadNamespace])
	}
	if payload[payloadItemID].GetStringValue() != "u1" || payload[payloadDomain].GetStringValue() != "meme" {
		t.Error("item_id/domain missing")
	}

	back := parsePayload(payload)
	if _, ok := back[payloadNamespace]; ok {
		t.Error("reserved keys should not leak into metadata")
	}
	if back["description"] != "a cat" || back["width"] != int64(640) || back["animated"] != false {
		t.Errorf("parsePayload() = %+v", back)
	}
}

func TestNamespaceFilter(t *testing.T) {
	f := namespaceFilter("a@x.com")
	if len(f.GetMust()) != 1 {
		t.Fatalf("filter must have one condition, got %d", len(f.GetMust()))
	}
	field := f.GetMust()[0].GetField()
	if field.GetKey() != payloadNamespace || field.GetMatch().GetKeyword() != "a@x.com" {
		t.Errorf("unexpected condition %+v", field)
	}
}

func TestCollectionVectorSize(t *testing.T) {
	info := &pb.CollectionInfo{
		Config: &pb.CollectionConfig{
			Params: &pb.CollectionParams{
				VectorsConfig: &pb.VectorsConfig{
					Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{Size: 1536}},
				},
			},
		},
	}
	if size, ok := collectionVectorSize(info); !ok || size != 1536 {
		t.Errorf("collectionVectorSize() = %d, %v", size, ok)
	}
	if _, ok := collectionVectorSize(nil); ok {
		t.Error("nil info should report no size")
	}
}
