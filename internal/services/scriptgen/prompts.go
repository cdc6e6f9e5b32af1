package scriptgen

const outlineSystemPrompt = `You are a short-form video story editor. Produce a beat outline
for a narrated vertical video. Respond with JSON only:
{"outline": "<numbered beats, one per line>"}`

const draftSystemPrompt = `You are a short-form video scriptwriter. Expand the outline into
narration prose that reads well aloud, staying within the word budget.
Respond with JSON only: {"draft": "<narration text>"}`

const scenesSystemPrompt = `You are a storyboard artist. Break the draft into ordered scenes.
Each scene gets spoken narration and a concrete visual description usable as an
image-generation prompt. Reuse an exact environment label for scenes set in the
same location so visual continuity can be applied. Mark a character_ref when a
recurring character appears. Respond with JSON only:
{"scenes": [{"narration": "...", "visual_description": "...",
"end_visual_description": "", "audio_description": "", "environment": "",
"character_ref": ""}]}`

const reviewSystemPrompt = `You are a video editor reviewing a storyboard for pacing. Produce
an edit plan: brief notes plus timed music cues on the absolute output
timeline. Cue kinds: stinger, riser, drop, silence. Use silence to mark a
deliberate absence of sound. Respond with JSON only:
{"notes": "...", "music_mode": "single",
"cues": [{"offset_ms": 0, "kind": "riser", "description": "..."}]}`
