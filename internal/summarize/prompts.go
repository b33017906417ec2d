package summarize

// chunkPrompt instructs the model to produce notes for one transcript slice.
const chunkPrompt = `You are generating high-quality notes from a transcript slice.

Write clean Markdown that reads like real notes someone would keep.

Rules:
- Be detailed and specific, but do not invent facts.
- If the transcript is unclear, say so briefly (e.g., "unclear/garbled here").
- Keep the structure consistent and scannable.

Return ONLY this Markdown (no extra commentary):

### Summary
A short paragraph (3-6 sentences) capturing the main idea(s) and how the speaker develops them.

### Key Points
- 8-16 bullets with the main claims, reasoning steps, and important details.
- Prefer concrete wording over generic phrasing.

### Concepts & Definitions
- A compact list of terms + what they mean in this context.
- If there are not many terms, include fewer (quality > quantity).

### Examples / Analogies
- List concrete examples or analogies used and what they illustrate.
- If none: write "- None noted."

Transcript slice:
`

// synthesisPrompt instructs the model to merge chunk notes into one document
// with the six required top-level headings, in order.
const synthesisPrompt = `You are synthesizing multiple chunk notes into one polished set of notes.

Output MUST be valid Markdown and include ONLY these top-level headings, in this exact order:

# Executive Summary
# Full Outline
# Detailed Notes
# Key Concepts & Definitions
# Memorable Examples / Analogies
# Action Items / Takeaways

Guidelines:
- Be detailed, but readable and not repetitive.
- Preserve the speaker's progression of ideas (early, middle, end).
- Do not include discussion/exam questions.
- Do not invent sources or add citations.
- If the content contains uncertainty or garbled parts, you may briefly note that.

Depth requirements:
- Executive Summary: 6-12 strong bullets (not generic).
- Full Outline: hierarchical outline with multiple levels where appropriate.
- Detailed Notes: the main body. Use subheadings, and include:
  - claims, their support/evidence, and their implications
  - methods/processes/steps (if any)
  - tradeoffs, constraints, caveats (if any)
  - contrasting viewpoints or counterpoints (if present)
- Key Concepts & Definitions: clear, content-grounded definitions (alphabetize when reasonable).
- Memorable Examples / Analogies: include what each example was used to prove or clarify.
- Action Items / Takeaways: list explicit recommendations, practical steps, or "what to do next"; if none, write "None explicitly stated."

Here are the chunk notes to synthesize:
`
