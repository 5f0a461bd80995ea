package swarm

// Capability identifies a skill that an agent can advertise. The set is
// closed: routing rules and registry indexes only ever see these values.
type Capability string

const (
	CapabilityWebSearch         Capability = "web_search"
	CapabilityRAGRetrieval      Capability = "rag_retrieval"
	CapabilityCodeGeneration    Capability = "code_generation"
	CapabilityCodeAnalysis      Capability = "code_analysis"
	CapabilityContentWriting    Capability = "content_writing"
	CapabilityMemoryManagement  Capability = "memory_management"
	CapabilityImageGeneration   Capability = "image_generation"
	CapabilityAPIIntegration    Capability = "api_integration"
	CapabilityFileOperations    Capability = "file_operations"
	CapabilityConversation      Capability = "conversation"
	CapabilityFinancialAnalysis Capability = "financial_analysis"
	CapabilityValuation         Capability = "valuation"
)
