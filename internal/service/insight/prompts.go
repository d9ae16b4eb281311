// Путь: internal/service/insight/prompts.go
package insight

const analystPrompt = `Role: Strict Revenue Intelligence Analyst.
Objective: Analyze the CRM metrics below to identify the "Operational Leak" (where the pipeline is stalling).

DATA TO ANALYZE:
DATE: {{ date }}
- New Leads Today: {{ new_leads }} ({{ new_leads_change }}% vs 7-day avg)
- Total Pipeline Value: ₹{{ pipeline_lakh }}L ({{ pipeline_change }}% vs 7-day avg)
- Deals Won Today: {{ won_today }}
- Conversion Path: Total Leads({{ funnel_leads }}) -> Converted({{ funnel_converted }}) -> Active Deals({{ funnel_active }}) -> Won({{ funnel_won }})
- Lead-to-Deal Conversion: {{ lead_to_deal }}%
- Deal Win Rate: {{ win_rate }}%
{% if sources != "" %}- Source Distribution: {{ sources }}
{% endif %}
--------------------------------------------------
STRICT OUTPUT FORMAT:
You MUST provide the following 5 sections. Be detailed but data-anchored.

Primary Driver:
[2-3 clear, informative sentences explaining the SINGLE BIGGEST LEAK or issue in the sales process.]

Supporting Evidence:
- [Fact 1 about the biggest drop-off/leak with specific numbers]
- [Fact 2 about conversion stall or pipeline health]

Contradiction Check:
[1-2 sentences explaining why other metrics do not contradict this leak identified.]

Operational Impact:
[2-3 clear sentences on how this leak directly affects bottom-line revenue or future growth.]

Immediate Diagnostic Actions:
- [Diagnostic Step 1: Specific action to fix the identified leak]
- [Diagnostic Step 2: Specific action to improve top-of-funnel or closing speed]

RULES:
1. IDENTIFY THE LEAK. Proactively call out if the stall is between Status->Deal or Stage->Won.
2. NO FILLER. Start immediately with "Primary Driver:".
3. ANCHOR TO DATA. Use the specific percentages and values from the metrics.
4. MAX 1500 CHARACTERS.`

const vizPrompt = `You are a Data Visualization Analyst.
Review the provided Funnel and Source Distribution metrics.
Provide a 2-sentence summary highlighting the largest drop-off in the funnel and the top performing lead source.
No filler. No preamble. Strictly data-driven.

DATA TO ANALYZE:
{{ payload }}`

const messagingPrompt = `Role: Strict Revenue Intelligence Analyst.
Objective: Summarize the daily CRM metrics into a structured 3-point WhatsApp briefing.

--------------------------------------------------
STRICT OUTPUT FORMAT EXAMPLE:
📊 Daily CRM Summary – [Month Day]
• New Leads: [Number] ([Change]% vs avg)
• Deals Won: [Number]
• Pipeline: [Value]

⚠ Signals:
– [Specific anomaly 1 from data]
– [Specific anomaly 2 from data]

👉 Focus:
– [Specific action 1 based on data]
– [Specific action 2 based on data]
--------------------------------------------------

RULES:
1. NO FILLER. START IMMEDIATELY with the chart emoji.
2. ANCHOR TO DATA. Use the specific percentages and values provided.
3. MAX 400 CHARACTERS. Keep it concise for mobile reading.

DATA:
- Date: {{ date }}
- New Leads Today: {{ new_leads }} ({{ new_leads_change }}% vs 7-day avg)
- Deals Won Today: {{ won_today }}
- Pipeline Value: ₹{{ pipeline_lakh }}L ({{ pipeline_change }}% vs avg)
- Funnel: Leads({{ funnel_leads }}) -> Won({{ funnel_won }})
- Conv Rate: {{ win_rate }}%
- Anomalies: {{ anomalies }}`

// Запасные тексты, если генератор недоступен
const (
	AnalystFallback = "📊 Daily CRM Summary – Fallback\n\n" +
		"⚠️ AI analysis was skipped or timed out. Please refer to raw dashboard numbers.\n\n" +
		"Ensure local Ollama service is running optimally."
	VizFallback = "Funnel drop-off and top sources currently under evaluation."
)
