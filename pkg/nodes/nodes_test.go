package nodes_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/comfygraph/pkg/graph"
	"github.com/ravi-parthasarathy/comfygraph/pkg/nodes"
)

func TestTypedWrapper_WritesThroughToNode(t *testing.T) {
	g := graph.New()
	ckpt := nodes.NewCheckpointLoaderSimple()
	enc := nodes.NewCLIPTextEncode()

	_, err := ckpt.CLIP()
	require.ErrorIs(t, err, graph.ErrNoID)

	_, err = g.AddNode(ckpt)
	require.NoError(t, err)
	require.NoError(t, g.AddNodeWithID(enc, "POSITIVE"))

	clip, err := ckpt.CLIP()
	require.NoError(t, err)
	assert.Equal(t, graph.OutputRef{NodeID: "0", OutputIndex: 1}, clip)

	enc.CLIP().ConnectTo(clip)
	enc.Text().Set("a bottle")

	n, ok := g.Node("POSITIVE")
	require.True(t, ok)
	assert.Same(t, enc.Base(), n)
	v, ok := n.Input("text").Value()
	require.True(t, ok)
	assert.Equal(t, "a bottle", v)
}

func TestRegistry_TypedAndGeneric(t *testing.T) {
	n := nodes.New(nodes.ClassKSampler)
	_, typed := n.(*nodes.KSampler)
	assert.True(t, typed)
	assert.Equal(t, "KSampler", n.Base().ClassType())

	g := nodes.New("SomethingNew")
	_, generic := g.(*graph.Node)
	assert.True(t, generic)
	assert.Equal(t, "SomethingNew", g.Base().ClassType())
}

func TestRegistry_Register(t *testing.T) {
	r := nodes.NewRegistry()
	_, ok := r.Lookup("VAEDecode")
	assert.False(t, ok)

	r.Register("VAEDecode", func() graph.Noder { return nodes.NewVAEDecode() })
	_, ok = r.New("VAEDecode").(*nodes.VAEDecode)
	assert.True(t, ok)
	assert.Equal(t, []string{"VAEDecode"}, r.Classes())
}

func TestBuiltin_Classes(t *testing.T) {
	assert.Equal(t, []string{
		"CLIPTextEncode",
		"CheckpointLoaderSimple",
		"EmptyLatentImage",
		"KSampler",
		"KSamplerAdvanced",
		"SaveImageWebsocket",
		"VAEDecode",
	}, nodes.Builtin().Classes())
}

func TestTextToImage_Build(t *testing.T) {
	g, err := nodes.TextToImage{
		Checkpoint: "v1-5-pruned-emaonly.safetensors",
		Positive:   "beautiful scenery nature glass bottle landscape",
		Negative:   "text",
		Seed:       595944585462224,
		Steps:      28,
	}.Build()
	require.NoError(t, err)

	p, err := g.Prompt()
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1", "2", "3", "KSAMPLER", "VAE DECODE", nodes.ImageNodeID}, p.IDs())

	ks, _ := p.Get("KSAMPLER")
	assert.Equal(t, int64(595944585462224), ks.Inputs["seed"])
	assert.Equal(t, 28, ks.Inputs["steps"])
	assert.Equal(t, "euler", ks.Inputs["sampler_name"])
	assert.Equal(t, []any{"0", 0}, ks.Inputs["model"])
	assert.Equal(t, []any{"1", 0}, ks.Inputs["positive"])
	assert.Equal(t, []any{"2", 0}, ks.Inputs["negative"])
	assert.Equal(t, []any{"3", 0}, ks.Inputs["latent_image"])

	img, _ := p.Get(nodes.ImageNodeID)
	assert.Equal(t, "SaveImageWebsocket", img.ClassType)
	assert.Equal(t, []any{"VAE DECODE", 0}, img.Inputs["images"])

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"1":{"inputs":{"clip":["0",1],"text":"beautiful scenery nature glass bottle landscape"},"class_type":"CLIPTextEncode","_meta":{}}`)
}

func TestTextToImage_RequiresCheckpoint(t *testing.T) {
	_, err := nodes.TextToImage{Positive: "x"}.Build()
	require.Error(t, err)
}
