package summary

// promptSet carries the prompt templates for one output language. User
// templates are fmt.Sprintf formats; the speaker variants take the speaker
// list first, then the transcript.
type promptSet struct {
	systemSummary           string
	userSummary             string
	userSummaryWithSpeakers string
	systemActions           string
	userActions             string
	systemSpeakers          string
	userSpeakers            string
}

func promptsFor(language string) promptSet {
	if language == "en" {
		return englishPrompts
	}
	return russianPrompts
}

var russianPrompts = promptSet{
	systemSummary: `Ты — профессиональный аналитик деловых встреч.
Твоя задача — создавать чёткие, структурированные саммари.
Пиши кратко, по делу, выделяя главное.
Используй маркированные списки для ключевых пунктов.`,

	userSummary: `Создай краткое саммари этой встречи.

Структура:
1. **Тема встречи** — одно предложение
2. **Ключевые обсуждения** — 3-5 пунктов
3. **Принятые решения** — что решили
4. **Следующие шаги** — что планируется

ТРАНСКРИПТ:
%s`,

	userSummaryWithSpeakers: `Создай краткое саммари этой встречи.
Участники: %s

Структура:
1. **Тема встречи** — одно предложение
2. **Ключевые обсуждения** — 3-5 пунктов (кто что предлагал)
3. **Принятые решения** — что решили
4. **Следующие шаги** — что планируется

ТРАНСКРИПТ:
%s`,

	systemActions: `Ты — ассистент по извлечению задач из деловых встреч.
Извлекай конкретные, исполнимые action items.
Каждый item должен иметь: действие, ответственного (если указан), срок (если упомянут).
Отвечай ТОЛЬКО в JSON формате.`,

	userActions: `Извлеки action items (задачи к исполнению) из транскрипта.

Верни JSON массив в формате:
[
  {"action": "описание задачи", "assignee": "кто делает или null", "deadline": "срок или null"},
  ...
]

Если задач нет, верни пустой массив: []

ТРАНСКРИПТ:
%s`,

	systemSpeakers: `Ты — аналитик деловых коммуникаций.
Анализируй вклад каждого участника встречи.
Выделяй: позицию, обязательства, вопросы, предложения.`,

	userSpeakers: `Проанализируй вклад каждого спикера в встречу.
Спикеры: %s

Для каждого спикера укажи:
- Основная позиция/роль на встрече
- Взятые обязательства
- Заданные вопросы
- Ключевые предложения

ТРАНСКРИПТ:
%s`,
}

var englishPrompts = promptSet{
	systemSummary: `You are a professional meeting analyst.
Your task is to create clear, structured meeting summaries.
Be concise, focus on key points.
Use bullet points for clarity.`,

	userSummary: `Create a brief summary of this meeting.

Structure:
1. **Meeting Topic** — one sentence
2. **Key Discussions** — 3-5 points
3. **Decisions Made** — what was decided
4. **Next Steps** — what's planned

TRANSCRIPT:
%s`,

	userSummaryWithSpeakers: `Create a brief summary of this meeting.
Participants: %s

Structure:
1. **Meeting Topic** — one sentence
2. **Key Discussions** — 3-5 points (who proposed what)
3. **Decisions Made** — what was decided
4. **Next Steps** — what's planned

TRANSCRIPT:
%s`,

	systemActions: `You are an assistant for extracting tasks from business meetings.
Extract specific, actionable items.
Each item should have: action, assignee (if mentioned), deadline (if mentioned).
Respond ONLY in JSON format.`,

	userActions: `Extract action items from the transcript.

Return a JSON array:
[
  {"action": "task description", "assignee": "who or null", "deadline": "when or null"},
  ...
]

If no tasks found, return empty array: []

TRANSCRIPT:
%s`,

	systemSpeakers: `You are a business communication analyst.
Analyze each participant's contribution to the meeting.
Highlight: position, commitments, questions, proposals.`,

	userSpeakers: `Analyze each speaker's contribution to the meeting.
Speakers: %s

For each speaker indicate:
- Main position/role in the meeting
- Commitments made
- Questions asked
- Key proposals

TRANSCRIPT:
%s`,
}
