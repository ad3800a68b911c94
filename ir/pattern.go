// Package ir defines the sealed intermediate representation A: packed
// node and timer records, bitmask algebra, and content hashing.
package ir

// Pattern identifies one of the 43 control-flow archetypes a node may
// be lowered into. Pattern 0 is never assigned; it marks an unset field.
type Pattern uint8

const (
	PatternSequence                   Pattern = 1
	PatternParallelSplit              Pattern = 2
	PatternSynchronization             Pattern = 3
	PatternExclusiveChoice             Pattern = 4
	PatternSimpleMerge                 Pattern = 5
	PatternMultiChoice                 Pattern = 6
	PatternStructuredSyncMerge         Pattern = 7
	PatternMultiMerge                  Pattern = 8
	PatternDiscriminator                Pattern = 9
	PatternArbitraryCycles              Pattern = 10
	PatternImplicitTermination          Pattern = 11
	PatternMIWithoutSync                Pattern = 12
	PatternMIDesignTime                 Pattern = 13
	PatternMIRuntime                    Pattern = 14
	PatternMINoPriorKnowledge           Pattern = 15
	PatternDeferredChoice               Pattern = 16
	PatternInterleavedParallelRouting   Pattern = 17
	PatternMilestone                    Pattern = 18
	PatternCancelActivity               Pattern = 19
	PatternCancelCase                   Pattern = 20
	PatternCancelRegion                 Pattern = 21
	PatternCancelMIActivity             Pattern = 22
	PatternCompleteMIActivity           Pattern = 23
	PatternDeadlineMIActivity           Pattern = 24
	PatternCancelMIActivityCompensation Pattern = 25
	PatternBlockingDiscriminator        Pattern = 26
	PatternCancellingDiscriminator      Pattern = 27
	PatternStructuredLoop               Pattern = 28
	PatternRecursion                    Pattern = 29
	PatternTransientTrigger             Pattern = 30
	PatternPersistentTrigger            Pattern = 31
	PatternMultipleInstancesTrigger     Pattern = 32
	PatternStaticPartialJoin            Pattern = 33
	PatternDynamicPartialJoin           Pattern = 34
	PatternGeneralizedANDJoin           Pattern = 35
	PatternLocalSyncMerge               Pattern = 36
	PatternGeneralSyncMerge             Pattern = 37
	PatternThreadSplit                  Pattern = 38
	PatternThreadMerge                  Pattern = 39
	PatternExplicitTermination          Pattern = 40
	PatternMultipleInstancesNoApriori   Pattern = 41
	PatternCancelMultipleInstanceRegion Pattern = 42
	PatternImplicitTerminationWithGuards Pattern = 43

	// MinPattern and MaxPattern bound the closed 1..43 pattern space.
	MinPattern Pattern = 1
	MaxPattern Pattern = 43
)

var patternNames = map[Pattern]string{
	PatternSequence:                      "Sequence",
	PatternParallelSplit:                 "ParallelSplit",
	PatternSynchronization:               "Synchronization",
	PatternExclusiveChoice:               "ExclusiveChoice",
	PatternSimpleMerge:                   "SimpleMerge",
	PatternMultiChoice:                   "MultiChoice",
	PatternStructuredSyncMerge:           "StructuredSyncMerge",
	PatternMultiMerge:                    "MultiMerge",
	PatternDiscriminator:                 "Discriminator",
	PatternArbitraryCycles:               "ArbitraryCycles",
	PatternImplicitTermination:           "ImplicitTermination",
	PatternMIWithoutSync:                 "MIWithoutSynchronization",
	PatternMIDesignTime:                  "MIDesignTimeKnowledge",
	PatternMIRuntime:                     "MIRuntimeKnowledge",
	PatternMINoPriorKnowledge:            "MINoPriorRuntimeKnowledge",
	PatternDeferredChoice:                "DeferredChoice",
	PatternInterleavedParallelRouting:    "InterleavedParallelRouting",
	PatternMilestone:                     "Milestone",
	PatternCancelActivity:                "CancelActivity",
	PatternCancelCase:                    "CancelCase",
	PatternCancelRegion:                  "CancelRegion",
	PatternCancelMIActivity:              "CancelMIActivity",
	PatternCompleteMIActivity:            "CompleteMIActivity",
	PatternDeadlineMIActivity:            "DeadlineMIActivity",
	PatternCancelMIActivityCompensation:  "CancelMIActivityCompensation",
	PatternBlockingDiscriminator:         "BlockingDiscriminator",
	PatternCancellingDiscriminator:       "CancellingDiscriminator",
	PatternStructuredLoop:                "StructuredLoop",
	PatternRecursion:                     "Recursion",
	PatternTransientTrigger:              "TransientTrigger",
	PatternPersistentTrigger:             "PersistentTrigger",
	PatternMultipleInstancesTrigger:      "MultipleInstancesTrigger",
	PatternStaticPartialJoin:             "StaticPartialJoin",
	PatternDynamicPartialJoin:            "DynamicPartialJoin",
	PatternGeneralizedANDJoin:            "GeneralizedANDJoin",
	PatternLocalSyncMerge:                "LocalSynchronizingMerge",
	PatternGeneralSyncMerge:              "GeneralSynchronizingMerge",
	PatternThreadSplit:                   "ThreadSplit",
	PatternThreadMerge:                   "ThreadMerge",
	PatternExplicitTermination:           "ExplicitTermination",
	PatternMultipleInstancesNoApriori:    "MultipleInstancesNoApriori",
	PatternCancelMultipleInstanceRegion:  "CancelMultipleInstanceRegion",
	PatternImplicitTerminationWithGuards: "ImplicitTerminationWithGuards",
}

func (p Pattern) String() string {
	if n, ok := patternNames[p]; ok {
		return n
	}
	return "Unknown"
}

// Valid reports whether p is in the closed 1..43 pattern space.
func (p Pattern) Valid() bool {
	return p >= MinPattern && p <= MaxPattern
}
