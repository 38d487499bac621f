// Package embeddings turns chunk text and search queries into vectors.
//
// Two providers are available. FastEmbed runs ONNX models in process and needs
// a cgo build with the ONNX runtime installed (ONNX_PATH). TEI calls a
// HuggingFace Text Embeddings Inference server over HTTP.
//
// Ingestion and search must share one Provider so that stored vectors and
// query vectors live in the same embedding space.
package embeddings
