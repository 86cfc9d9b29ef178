package llm

// narrationPrompt takes the target language and the slide text.
const narrationPrompt = `You are an experienced teacher explaining content to students.

TASK:
Create a natural spoken narration for the following slide content.

IMPORTANT RULES:
- Generate narration ONLY (spoken explanation)
- Do NOT ask questions or generate quizzes
- Do NOT generate JSON or structured data
- Do NOT mention "questions", "MCQs", or "quiz"
- Generate the narration in: %[1]s
- Use a natural, engaging teaching tone
- Explain concepts clearly without repeating text verbatim
- Keep it concise but informative (2-4 paragraphs)

Slide content:
%[2]s

Narration:`

// qaPrompt takes the target language and the slide text.
const qaPrompt = `You are an assessment generator creating quiz questions.

TASK:
Generate 1-2 valid MCQ questions based on the slide content.

STRICT RULES (MANDATORY):
- The "answer" MUST be exactly one of the provided options
- ALL questions and options MUST be in %[1]s
- Generate ALL text strictly in %[1]s
- If %[1]s is not "en", DO NOT use English words at all
- Output ONLY valid JSON
- Output MUST start with '{' and end with '}'
- Do NOT include any text before or after the JSON
- Do NOT include explanations, comments, or introductions

Return a JSON object with exactly one key: "questions"

Each question MUST include:
- "question": string (the question text)
- "options": list of exactly 4 strings
- "answer": must EXACTLY match one option
- "difficulty": "easy" or "medium"

Slide content:
%[2]s

JSON Output:`
