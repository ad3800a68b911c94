package compiler

// The compiler reads a fixed predicate vocabulary out of the quad set
// produced by graph.Graph: a fixed set of pattern-matching queries
// expressed as string predicates rather than SPARQL, since a SPARQL
// engine itself is out of scope here.
const (
	predPattern   = "pattern"    // explicit pattern name, e.g. "sequence"
	predSplit     = "split"      // "and" | "xor" | "or", used when predPattern absent
	predJoin      = "join"       // "and" | "xor" | "or", used when predPattern absent
	predJoinK     = "join:k"     // integer string; static partial-join threshold
	predJoinKExpr = "join:k_expr"
	predFlowNext  = "flow:next" // subject -> object control-flow edge
	predMICount   = "mi:count"
	predRole      = "role"
	predMilestone = "milestone"
	predCancelOf  = "cancel:of" // this node cancels the named target on fire

	predTimerKind    = "timer:kind" // "oneshot" | "recurring" | "deferred"
	predTimerDueAtNS = "timer:due_at_ns"
	predTimerCatchUp = "timer:catchup" // "fire_all" | "fire_once" | "skip"
	predTimerRRule   = "timer:rrule"
)

// patternByName resolves an explicit "pattern" object value to an
// ir.Pattern, the language-neutral name set extraction accepts.
var patternByName = map[string]uint8{
	"sequence":                            1,
	"parallel_split":                      2,
	"synchronization":                     3,
	"exclusive_choice":                    4,
	"simple_merge":                        5,
	"multi_choice":                        6,
	"structured_sync_merge":               7,
	"multi_merge":                         8,
	"discriminator":                       9,
	"arbitrary_cycles":                    10,
	"implicit_termination":                11,
	"mi_without_sync":                     12,
	"mi_design_time":                      13,
	"mi_runtime":                          14,
	"mi_no_prior_knowledge":               15,
	"deferred_choice":                     16,
	"interleaved_parallel_routing":        17,
	"milestone":                           18,
	"cancel_activity":                     19,
	"cancel_case":                         20,
	"cancel_region":                       21,
	"cancel_mi_activity":                  22,
	"complete_mi_activity":                23,
	"deadline_mi_activity":                24,
	"cancel_mi_activity_compensation":     25,
	"blocking_discriminator":              26,
	"cancelling_discriminator":            27,
	"structured_loop":                     28,
	"recursion":                           29,
	"transient_trigger":                   30,
	"persistent_trigger":                  31,
	"multiple_instances_trigger":          32,
	"static_partial_join":                 33,
	"dynamic_partial_join":                34,
	"generalized_and_join":                35,
	"local_sync_merge":                    36,
	"general_sync_merge":                  37,
	"thread_split":                        38,
	"thread_merge":                        39,
	"explicit_termination":                40,
	"multiple_instances_no_apriori":       41,
	"cancel_multiple_instance_region":     42,
	"implicit_termination_with_guards":    43,
}
