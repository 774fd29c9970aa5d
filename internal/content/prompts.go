package content

const postPrompt = `You are a tech content writer for %s, a blog for %s, with a strong focus on %s.

Write an engaging blog post based on this article:

Title: %s
Source: %s
URL: %s
Summary: %s

Guidelines:
1. Write a catchy, SEO-friendly title (different from the original)
2. Create an engaging 800-1200 word blog post
3. Add your own insights and analysis, especially how this relates to %s
4. Use clear markdown headings (## and ###)
5. Write in a professional but conversational tone
6. Include a brief excerpt (2-3 sentences)
7. Suggest 3-5 relevant tags

Format your response as:

TITLE:
[Your title here]

EXCERPT:
[2-3 sentence excerpt]

CONTENT:
[Your blog post content with markdown formatting]

TAGS:
[tag1, tag2, tag3]

SOURCE:
[Original article link]
`

const categoryPrompt = `You are categorizing a technical blog post.

Article Title: %s
Content Preview: %s

Available Categories:
%s
Select the MOST appropriate single category. Respond with ONLY the category name, nothing else.`

const socialPrompt = `Create a professional LinkedIn post about this article, framed for readers interested in %s:

Title: %s
Source: %s
Summary: %s
URL: %s

Guidelines:
1. Keep it under 200 words
2. Start with a hook that grabs attention
3. Add your professional insight or opinion
4. Include 2-3 relevant hashtags
5. End with the link to the original article
6. Professional but conversational tone

Write only the post text, nothing else.`

const rankPrompt = `You are selecting the top %d most valuable articles for a weekly newsletter for %s, with a focus on %s.

Articles:
%s
Select based on relevance, actionable learning value, diversity of topics, timeliness and source quality.

Respond with ONLY the article numbers in order of priority, separated by commas. Select at most %d.
Example: 3, 7, 1, 12, 5`

const introPrompt = `Write a brief engaging introduction (2-3 sentences) for a weekly tech newsletter.

This week's top articles:
%s
Welcome readers warmly, tease the value they'll get this week, and keep it conversational.

Write only the introduction, nothing else.`

const taskPrompt = `You are a senior engineer and mentor focused on %s.

Using the themes from these articles:
%s
Create ONE simple but interesting weekly practice task for newsletter subscribers.

Guidelines:
1. The task should be solvable in 20-30 minutes.
2. Make it concrete (e.g. "Write a small program that...", "Refactor an existing function to...").
3. Emphasize reasoning and design, not just syntax.
4. Do NOT include the solution, only the task description.

Write 3-6 sentences. Start with a short title like: "Weekly Practice: [short description]".`
