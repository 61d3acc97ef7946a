package registry

// Kind is the five-valued tag of spec.md §3.2, plus the internal HEADER
// marker used for structural scaffolding (spec.md §4.1).
type Kind string

const (
	KindHeader    Kind = "HEADER"
	KindStatus    Kind = "STATUS"
	KindJob       Kind = "JOB"
	KindStream    Kind = "STREAM"
	KindRPCServer Kind = "RPC_SERVER"
	KindRPCClient Kind = "RPC_CLIENT"
)

// linkLabel renders the conventional path-segment constant callers use for
// this kind (spec.md §4.1: "KB_STATUS_FIELD", "KB_JOB_QUEUE", ...). It is
// pushed onto the builder's path stack alongside the caller-supplied name.
func (k Kind) linkLabel() string {
	switch k {
	case KindStatus:
		return "kb_status_field"
	case KindJob:
		return "kb_job_queue"
	case KindStream:
		return "kb_stream_field"
	case KindRPCServer:
		return "kb_rpc_server_field"
	case KindRPCClient:
		return "kb_rpc_client_field"
	default:
		return "kb_header"
	}
}

// QueuedKind reports whether entries of this kind carry a queue_depth
// property and own a satellite table reconciled by count (spec.md §3.2).
func (k Kind) QueuedKind() bool {
	switch k {
	case KindJob, KindStream, KindRPCServer, KindRPCClient:
		return true
	default:
		return false
	}
}

// AllSatelliteKinds lists the kinds the reconciler iterates, in the fixed
// order SPEC_FULL.md §3 specifies: STATUS first (not queued, but still
// reconciled for create/delete), then the four queued kinds.
var AllSatelliteKinds = []Kind{KindStatus, KindJob, KindStream, KindRPCServer, KindRPCClient}
