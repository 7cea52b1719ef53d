package codec

import (
	"testing"
	"time"

	"github.com/hupe1980/findmymeow/metadata"
)

func benchmarkCodecMarshal(b *testing.B, c Codec, v any) {
	b.Helper()
	b.ReportAllocs()

	warm, err := c.Marshal(v)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(warm)))

	var sink []byte
	b.ResetTimer()
	for b.Loop() {
		out, err := c.Marshal(v)
		if err != nil {
			b.Fatal(err)
		}
		sink = out
	}
	_ = sink
}

func benchmarkCodecUnmarshal[T any](b *testing.B, c Codec, data []byte, dst *T) {
	b.Helper()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))

	var v T
	b.ResetTimer()
	for b.Loop() {
		if err := c.Unmarshal(data, &v); err != nil {
			b.Fatal(err)
		}
	}
	if dst != nil {
		*dst = v
	}
}

func str(s string) *string { return &s }

func benchPost() metadata.Post {
	return metadata.Post{
		ID:         "42",
		UserID:     "user-7",
		CatName:    str("Mochi"),
		Gender:     str(metadata.GenderFemale),
		Color:      str("calico"),
		Breed:      str("mixed"),
		CatMarking: str("white tip on tail"),
		Location: &metadata.Location{
			Province:    "Bangkok",
			District:    "Bang Rak",
			SubDistrict: "Silom",
		},
		LostDate:          str("2024-05-01"),
		OtherInformation:  str("very shy, answers to her name"),
		EmailNotification: true,
		Image: &metadata.ImageRef{
			ImageID:   "1234",
			IndexKey:  1234,
			ImagePath: "s3://cats/images/findmymeow_0f8e.jpg",
		},
		PostType:  metadata.PostTypeLost,
		CreatedAt: time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC),
	}
}

func BenchmarkCodec_Marshal_Post(b *testing.B) {
	post := benchPost()

	b.Run("stdlib", func(b *testing.B) { benchmarkCodecMarshal(b, JSON{}, post) })
	b.Run("go-json", func(b *testing.B) { benchmarkCodecMarshal(b, GoJSON{}, post) })
}

func BenchmarkCodec_Unmarshal_Post(b *testing.B) {
	jsonData, err := JSON{}.Marshal(benchPost())
	if err != nil {
		b.Fatal(err)
	}

	b.Run("stdlib", func(b *testing.B) {
		var sink metadata.Post
		benchmarkCodecUnmarshal(b, JSON{}, jsonData, &sink)
		_ = sink
	})
	b.Run("go-json", func(b *testing.B) {
		var sink metadata.Post
		benchmarkCodecUnmarshal(b, GoJSON{}, jsonData, &sink)
		_ = sink
	})
}
