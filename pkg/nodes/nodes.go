// Package nodes provides typed wrappers for the built-in node classes. Each
// wrapper embeds *graph.Node, which stays the single source of truth for
// serialization; the wrapper only names the inputs and outputs.
package nodes

import "github.com/ravi-parthasarathy/comfygraph/pkg/graph"

// Class type tags of the typed wrappers.
const (
	ClassKSampler               = "KSampler"
	ClassKSamplerAdvanced       = "KSamplerAdvanced"
	ClassCheckpointLoaderSimple = "CheckpointLoaderSimple"
	ClassEmptyLatentImage       = "EmptyLatentImage"
	ClassCLIPTextEncode         = "CLIPTextEncode"
	ClassVAEDecode              = "VAEDecode"
	ClassSaveImageWebsocket     = "SaveImageWebsocket"
)

// ─── KSampler ─────────────────────────────────────────────────────────────────

// KSampler denoises a latent image.
type KSampler struct{ *graph.Node }

// NewKSampler creates an uninserted KSampler.
func NewKSampler() *KSampler { return &KSampler{graph.NewNode(ClassKSampler)} }

func (n *KSampler) Seed() graph.InputRef        { return n.Input("seed") }
func (n *KSampler) Steps() graph.InputRef       { return n.Input("steps") }
func (n *KSampler) CFG() graph.InputRef         { return n.Input("cfg") }
func (n *KSampler) SamplerName() graph.InputRef { return n.Input("sampler_name") }
func (n *KSampler) Scheduler() graph.InputRef   { return n.Input("scheduler") }
func (n *KSampler) Denoise() graph.InputRef     { return n.Input("denoise") }
func (n *KSampler) Model() graph.InputRef       { return n.Input("model") }
func (n *KSampler) Positive() graph.InputRef    { return n.Input("positive") }
func (n *KSampler) Negative() graph.InputRef    { return n.Input("negative") }
func (n *KSampler) LatentImage() graph.InputRef { return n.Input("latent_image") }

// Latent is the LATENT output.
func (n *KSampler) Latent() (graph.OutputRef, error) { return n.Output(0) }

// ─── KSamplerAdvanced ─────────────────────────────────────────────────────────

// KSamplerAdvanced is KSampler with explicit noise and step-range control.
type KSamplerAdvanced struct{ *graph.Node }

// NewKSamplerAdvanced creates an uninserted KSamplerAdvanced.
func NewKSamplerAdvanced() *KSamplerAdvanced {
	return &KSamplerAdvanced{graph.NewNode(ClassKSamplerAdvanced)}
}

func (n *KSamplerAdvanced) AddNoise() graph.InputRef    { return n.Input("add_noise") }
func (n *KSamplerAdvanced) NoiseSeed() graph.InputRef   { return n.Input("noise_seed") }
func (n *KSamplerAdvanced) Steps() graph.InputRef       { return n.Input("steps") }
func (n *KSamplerAdvanced) CFG() graph.InputRef         { return n.Input("cfg") }
func (n *KSamplerAdvanced) SamplerName() graph.InputRef { return n.Input("sampler_name") }
func (n *KSamplerAdvanced) Scheduler() graph.InputRef   { return n.Input("scheduler") }
func (n *KSamplerAdvanced) StartAtStep() graph.InputRef { return n.Input("start_at_step") }
func (n *KSamplerAdvanced) EndAtStep() graph.InputRef   { return n.Input("end_at_step") }
func (n *KSamplerAdvanced) ReturnWithLeftoverNoise() graph.InputRef {
	return n.Input("return_with_leftover_noise")
}
func (n *KSamplerAdvanced) Model() graph.InputRef       { return n.Input("model") }
func (n *KSamplerAdvanced) Positive() graph.InputRef    { return n.Input("positive") }
func (n *KSamplerAdvanced) Negative() graph.InputRef    { return n.Input("negative") }
func (n *KSamplerAdvanced) LatentImage() graph.InputRef { return n.Input("latent_image") }

// Latent is the LATENT output.
func (n *KSamplerAdvanced) Latent() (graph.OutputRef, error) { return n.Output(0) }

// ─── CheckpointLoaderSimple ───────────────────────────────────────────────────

// CheckpointLoaderSimple loads a checkpoint and exposes its model, CLIP and VAE.
type CheckpointLoaderSimple struct{ *graph.Node }

// NewCheckpointLoaderSimple creates an uninserted CheckpointLoaderSimple.
func NewCheckpointLoaderSimple() *CheckpointLoaderSimple {
	return &CheckpointLoaderSimple{graph.NewNode(ClassCheckpointLoaderSimple)}
}

func (n *CheckpointLoaderSimple) CheckpointName() graph.InputRef { return n.Input("ckpt_name") }

func (n *CheckpointLoaderSimple) Model() (graph.OutputRef, error) { return n.Output(0) }
func (n *CheckpointLoaderSimple) CLIP() (graph.OutputRef, error)  { return n.Output(1) }
func (n *CheckpointLoaderSimple) VAE() (graph.OutputRef, error)   { return n.Output(2) }

// ─── EmptyLatentImage ─────────────────────────────────────────────────────────

// EmptyLatentImage creates a blank latent batch.
type EmptyLatentImage struct{ *graph.Node }

// NewEmptyLatentImage creates an uninserted EmptyLatentImage.
func NewEmptyLatentImage() *EmptyLatentImage {
	return &EmptyLatentImage{graph.NewNode(ClassEmptyLatentImage)}
}

func (n *EmptyLatentImage) Width() graph.InputRef     { return n.Input("width") }
func (n *EmptyLatentImage) Height() graph.InputRef    { return n.Input("height") }
func (n *EmptyLatentImage) BatchSize() graph.InputRef { return n.Input("batch_size") }

// Latent is the LATENT output.
func (n *EmptyLatentImage) Latent() (graph.OutputRef, error) { return n.Output(0) }

// ─── CLIPTextEncode ───────────────────────────────────────────────────────────

// CLIPTextEncode turns a text prompt into conditioning.
type CLIPTextEncode struct{ *graph.Node }

// NewCLIPTextEncode creates an uninserted CLIPTextEncode.
func NewCLIPTextEncode() *CLIPTextEncode { return &CLIPTextEncode{graph.NewNode(ClassCLIPTextEncode)} }

func (n *CLIPTextEncode) Text() graph.InputRef { return n.Input("text") }
func (n *CLIPTextEncode) CLIP() graph.InputRef { return n.Input("clip") }

// Conditioning is the CONDITIONING output.
func (n *CLIPTextEncode) Conditioning() (graph.OutputRef, error) { return n.Output(0) }

// ─── VAEDecode ────────────────────────────────────────────────────────────────

// VAEDecode decodes latents into images.
type VAEDecode struct{ *graph.Node }

// NewVAEDecode creates an uninserted VAEDecode.
func NewVAEDecode() *VAEDecode { return &VAEDecode{graph.NewNode(ClassVAEDecode)} }

func (n *VAEDecode) Samples() graph.InputRef { return n.Input("samples") }
func (n *VAEDecode) VAE() graph.InputRef     { return n.Input("vae") }

// Image is the IMAGE output.
func (n *VAEDecode) Image() (graph.OutputRef, error) { return n.Output(0) }

// ─── SaveImageWebsocket ───────────────────────────────────────────────────────

// SaveImageWebsocket streams its images over the event channel instead of
// writing them to disk. It has no outputs.
type SaveImageWebsocket struct{ *graph.Node }

// NewSaveImageWebsocket creates an uninserted SaveImageWebsocket.
func NewSaveImageWebsocket() *SaveImageWebsocket {
	return &SaveImageWebsocket{graph.NewNode(ClassSaveImageWebsocket)}
}

func (n *SaveImageWebsocket) Images() graph.InputRef { return n.Input("images") }
