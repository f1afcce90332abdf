// Package live turns a raw microphone stream into discrete utterance chunks.
//
// # Components
//
//   - Monitor: polls the most recent audio window on a ticker, starts a
//     recording once the RMS level holds above threshold, finalizes it after
//     trailing silence, and publishes the running silence duration on every tick
//   - ChunkQueue: FIFO of finalized chunks drained by a single worker
//   - RingBuffer / AudioBuffer: the analysis window and the recorder
//
// # Data Flow
//
//	Mic PCM → Monitor.Write → RingBuffer ──(tick)──► level ≥ threshold for hold?
//	                       └► AudioBuffer (while recording)
//	                                     │
//	        trailing silence ────────────┘──► EncodeWAV ──► ChunkQueue ──► handler
//
// Chunks smaller than MonitorConfig.MinChunkBytes are reported through the
// discard callback instead of being queued.
package live
