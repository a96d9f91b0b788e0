package generate

const personaPrompt = `Analyze this LinkedIn profile data and create a comprehensive persona summary.

**PROFILE DATA:**
%s

**COMPANY INFO:**
%s

**INSTRUCTIONS:**
Create a structured persona that includes:

**PERSONA SUMMARY FOR %s:**
- **Current Role:** [Their current job title and primary responsibilities]
- **Company:** [Current company name and what the company does]
- **Industry:** [The industry they work in]
- **Experience Level:** [Junior/Mid-level/Senior/Executive based on their background]
- **Key Skills:** [Professional skills and expertise areas]
- **Professional Background:** [Career progression and notable previous roles]
- **Challenges They Likely Face:** [3-4 specific challenges someone in their role typically encounters]
- **Goals & Objectives:** [What they're likely trying to achieve professionally]
- **Decision Making Power:** [Are they a decision maker, influencer, or end user]

Keep this factual and based only on the provided profile data. If information isn't available, mark it as "Not specified" rather than assuming.`

// problemPrompt args: industry, service, persona, service, industry, name, service, service.
const problemPrompt = `Based on this persona and their role in the %s industry, identify 3 specific business problems that %s services could solve.

**PERSONA:**
%s

**SERVICE CONTEXT:**
- Service Type: %s
- Target Industry: %s

**REQUIREMENTS:**
List 3 specific, realistic problems that someone like %s would face that your %s services could address. Make each problem:
1. Specific to their role and industry
2. Something they would actually care about
3. Solvable by %s services

**FORMAT:**
Problem 1: [Specific problem related to their role]
Problem 2: [Different aspect they might struggle with]
Problem 3: [Another relevant challenge]

Each should be 1-2 sentences describing a real pain point.`

// pitchPrompt args: name, service, persona, problems, service, industry,
// name, extra instructions, name.
const pitchPrompt = `Create 3 highly personalized LinkedIn outreach messages for %s to promote %s services.

**TARGET PERSONA:**
%s

**PROBLEMS TO ADDRESS:**
%s

**SERVICE DETAILS:**
- Service: %s
- Industry Focus: %s

**REQUIREMENTS FOR EACH PITCH:**
- Maximum 2-3 sentences (LinkedIn message length)
- Personalized to %s specifically
- Reference their role, company, or industry naturally
- Address one of the identified problems
- Include a soft call-to-action
- Professional but conversational tone
- NO generic templates or spammy language
%s
**FORMAT:**
Pitch 1: [Message addressing Problem 1]

Pitch 2: [Message addressing Problem 2]

Pitch 3: [Message addressing Problem 3]

Make each message feel like it was written specifically for %s after researching their background.`

const personaFallback = `**PERSONA SUMMARY FOR %s:**
- **Current Role:** Professional in %s
- **Company:** %s
- **Industry:** %s
- **Experience Level:** Not specified
- **Key Skills:** Not specified
- **Professional Background:** Not specified
- **Challenges They Likely Face:** Industry-specific challenges
- **Goals & Objectives:** Professional growth and efficiency
- **Decision Making Power:** Not specified`
